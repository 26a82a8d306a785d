package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"ENVIRONMENT", "PORT", "ALLOWED_ORIGINS", "DATABASE_URL", "STORE_DRIVER",
	"MODERATION_EXTRA_WORDS", "MODERATION_WORDS_FILE", "MODERATION_WORDS_S3_KEY",
	"S3_BUCKET_NAME", "S3_ENDPOINT", "S3_REGION", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
}

// cleanEnv blanks every setting and moves into an empty directory so no .env is picked up.
func cleanEnv(t *testing.T) {
	t.Helper()

	for _, key := range configKeys {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoadConfigDefaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.False(t, cfg.Storage.Enabled())
}

func TestLoadConfigParsesLists(t *testing.T) {
	cleanEnv(t)
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("MODERATION_EXTRA_WORDS", "frak, smeg ,")
	t.Setenv("DATABASE_URL", "postgres://localhost/blip")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"frak", "smeg"}, cfg.ModerationExtraWords)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"PORT": "eighty"}},
		{"privileged port", map[string]string{"PORT": "80"}},
		{"production without database", map[string]string{"ENVIRONMENT": "production"}},
		{"postgres without dsn", map[string]string{"STORE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"s3 key without bucket", map[string]string{"MODERATION_WORDS_S3_KEY": "words.txt"}},
		{"s3 key without credentials", map[string]string{
			"MODERATION_WORDS_S3_KEY": "words.txt",
			"S3_BUCKET_NAME":          "moderation",
			"S3_ENDPOINT":             "http://localhost:9000",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	cleanEnv(t)
	// godotenv never overrides variables that are already set, even to "".
	require.NoError(t, os.Unsetenv("PORT"))

	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte("PORT=9090\n"), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
}
