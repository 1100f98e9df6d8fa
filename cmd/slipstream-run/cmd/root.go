package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/VAHHABSY/SlipstreamApp/internal/config"
	"github.com/VAHHABSY/SlipstreamApp/internal/logging"
	"github.com/VAHHABSY/SlipstreamApp/internal/profile"
)

var (
	cfgFile string
	dbPath  string
	debug   bool
)

// ExitError carries the status the process should exit with.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:           "slipstream-run",
	Short:         "Run slipstream tunnels through the native shim",
	Long:          `slipstream-run loads libslipstream, calls its entry point and manages saved tunnel profiles.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: first of slipbridge.jsonc, configs/slipbridge.jsonc)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "profile database (default from config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig reads --config, or searches the default locations.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	cfg, _, err := config.LoadFirst(config.SearchPaths...)
	return cfg, err
}

// newLogger returns a stderr logger honoring --debug and the config.
func newLogger(cfg *config.Config, logPath string) (*slog.Logger, func() error) {
	level := slog.LevelInfo
	if debug || cfg.Debug {
		level = slog.LevelDebug
	}
	return logging.New(logging.Options{
		Tag:      logging.DefaultTag,
		Sink:     logging.Stderr,
		FilePath: logPath,
		Level:    level,
	})
}

// openStore opens --db, or the database named by the config.
func openStore(cfg *config.Config) (*profile.Store, error) {
	path := dbPath
	if path == "" {
		path = cfg.ProfileDB
	}
	store, err := profile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile database: %w", err)
	}
	return store, nil
}
