package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/Keksclan/goRawrRemote/settings"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	cfgPath   string
	envPath   string
	isDebug   bool
	withTrace bool

	cfg *settings.Settings
)

var rootCmd = &cobra.Command{
	Use:           "rawr-remote",
	Short:         "Resilient client for a remote entity service",
	Long:          `rawr-remote fetches entities from a JSON:API style service with retries, negative caching and error normalization, and can expose the lookup as a gRPC service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(slog.LevelInfo)

		if err := settings.LoadEnv(envPath); err != nil {
			slog.Error("Failed to load env file", "error", err)
			return err
		}

		var err error
		cfg, err = settings.Load(cfgPath)
		if err != nil {
			slog.Error("Failed to load config", "error", err)
			return err
		}

		level, _ := cfg.Logging.SlogLevel()
		if isDebug {
			level = slog.LevelDebug
		}
		setupLogger(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "env file loaded before the config is expanded")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&withTrace, "trace", false, "print spans to stderr")

	rootCmd.AddCommand(serveCmd, fetchCmd, getCmd)
}

func setupLogger(level slog.Level) {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})))
}
