/*
Package configs is responsible for loading and parsing the server's configuration settings.

It reads operating system environment variables (optionally seeded from a .env file outside
production): the running environment, port, CORS allowed origins, the storage driver and the
moderation dictionary sources.
*/
package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"blip/internal/app/storage"
)

const (
	// EnvDevelopment is the default running environment.
	EnvDevelopment = "development"

	// EnvProduction disables .env loading.
	EnvProduction = "production"

	// StoreMemory keeps all state in process; it is lost on restart.
	StoreMemory = "memory"

	// StorePostgres stores state in PostgreSQL.
	StorePostgres = "postgres"
)

// AppConfig contains all configuration parameters required for the server to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string

	// Storage Settings
	StoreDriver string
	DatabaseDSN string

	// Moderation Settings
	ModerationExtraWords []string
	ModerationWordsFile  string
	ModerationWordsKey   string

	// S3 Storage Settings
	Storage storage.ServiceConfig
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// splitList splits a comma separated value, dropping blank entries.
func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LoadConfig reads and parses the server configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
func LoadConfig() (*AppConfig, error) {
	if os.Getenv("ENVIRONMENT") != EnvProduction {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
	}

	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	// --- Storage Settings ---
	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER")))

	if cfg.StoreDriver == "" {
		switch {
		case cfg.DatabaseDSN != "":
			cfg.StoreDriver = StorePostgres
		case cfg.IsDevelopment():
			cfg.StoreDriver = StoreMemory
		default:
			return nil, fmt.Errorf("DATABASE_URL environment variable is required in %s environment", cfg.Environment)
		}
	}

	switch cfg.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseDSN == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for the %s store", StorePostgres)
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	// --- Moderation Settings ---
	cfg.ModerationExtraWords = splitList(os.Getenv("MODERATION_EXTRA_WORDS"))
	cfg.ModerationWordsFile = strings.TrimSpace(os.Getenv("MODERATION_WORDS_FILE"))
	cfg.ModerationWordsKey = strings.TrimSpace(os.Getenv("MODERATION_WORDS_S3_KEY"))

	// --- S3 Storage Settings ---
	cfg.Storage = storage.ServiceConfig{
		S3BucketName:      os.Getenv("S3_BUCKET_NAME"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Region:          os.Getenv("S3_REGION"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
	}

	if cfg.ModerationWordsKey != "" {
		if !cfg.Storage.Enabled() {
			return nil, fmt.Errorf("S3_BUCKET_NAME and S3_ENDPOINT are required when MODERATION_WORDS_S3_KEY is set")
		}
		if cfg.Storage.S3AccessKeyID == "" || cfg.Storage.S3SecretAccessKey == "" {
			return nil, fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for S3 authentication")
		}
	}

	return cfg, nil
}
