// mercadobr: Brazilian market data pipeline.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seenimoa/mercadobr/api"
	"github.com/seenimoa/mercadobr/internal/config"
	"github.com/seenimoa/mercadobr/internal/logging"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg *config.Config
	log *logging.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var reported *exitError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mercadobr",
	Short: "mercadobr — Brazilian market data pipeline",
	Long: `mercadobr collects Brazilian macroeconomic indicators, B3 stock prices and
financial news into flat files, writes an investment report with a
three-role language-model pipeline, and serves a dashboard with a chat
assistant.

Run without a subcommand to execute the whole pipeline and then serve the
dashboard on 0.0.0.0:8000.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if l, _ := cmd.Flags().GetString("log-level"); l != "" {
			level = l
		}
		if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
			cfg.Data.Dir = dir
		}
		log = logging.NewFromConfig(level, cfg.Logging.Format)
		api.Version = version
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipelineAndServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory override (default: ./data)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(indicatorsCmd)
	rootCmd.AddCommand(equitiesCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mercadobr %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}
