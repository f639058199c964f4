// Command fluxstore is a small CLI over the fluxstore embedded datastore:
// insert points from CSV, run ad hoc queries, reindex, and print stats.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fluxstore/cmd/fluxstore/cli"
	"fluxstore/internal/logging"
)

var version = "dev"

func main() {
	var logLevel string
	var logFormat string

	baseLevel := new(slog.LevelVar)
	var baseHandler slog.Handler

	rootCmd := &cobra.Command{
		Use:     "fluxstore",
		Short:   "Embedded append-optimized time-series datastore",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(logLevel)
			if err != nil {
				return err
			}
			baseLevel.Set(level)

			switch logFormat {
			case "json":
				baseHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: baseLevel})
			case "text", "":
				baseHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: baseLevel})
			default:
				return fmt.Errorf("unknown --log-format %q (want text or json)", logFormat)
			}
			filter := logging.NewComponentFilterHandler(baseHandler, level)
			cli.Logger = slog.New(filter).With("run_id", uuid.Must(uuid.NewV7()).String())
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&cli.ConfigPath, "config", "", "path to a JSON file remembering open-options across invocations")

	rootCmd.AddCommand(
		cli.NewInsertCmd(),
		cli.NewQueryCmd(),
		cli.NewCountCmd(),
		cli.NewReindexCmd(),
		cli.NewStatsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown --log-level %q (want debug, info, warn, error)", s)
	}
}
