package main

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"blip/internal/app/identity"
	"blip/internal/client"
	"blip/internal/pkg/logx"
)

const defaultServer = "http://localhost:8080"

var (
	serverURL string
	dataDir   string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "blip",
	Short: "blip - anonymous public chat",
	Long: `blip is a terminal viewer for the blip public chat room.
Identities are anonymous and generated locally; pick a display name with
"blip name set" or chat under the generated fallback name.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logx.InitWithWriter(zerolog.ConsoleWriter{Out: os.Stderr}, level)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		errColor.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("BLIP_SERVER", defaultServer), "blip server address (env BLIP_SERVER)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", envOr("BLIP_DATA_DIR", defaultDataDir()), "Directory of the local identity store (env BLIP_DATA_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(nameCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(resetCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".blip"
	}
	return filepath.Join(home, ".blip")
}

// viewer is the per-command client state.
type viewer struct {
	api     *client.API
	profile *client.Profile
	close   func()
}

// openViewer opens the local store under dataDir. When it cannot be opened the identity lives
// only for this run. close may be called more than once.
func openViewer() *viewer {
	api := client.NewAPI(serverURL, client.DefaultTimeout)

	var (
		kv   identity.KV
		once sync.Once
	)
	closeFn := func() {}

	db, err := identity.OpenPebble(dataDir)
	if err != nil {
		logx.Warn("Local storage unavailable, identity will not persist.", "data_dir", dataDir, "error", err.Error())
		kv = identity.NewMemoryKV()
	} else {
		kv = db
		closeFn = func() {
			once.Do(func() {
				if err := db.Close(); err != nil {
					logx.Error(err, "Failed to close local storage")
				}
			})
		}
	}

	return &viewer{api: api, profile: client.NewProfile(kv, api), close: closeFn}
}
