// Package main implements the boardcheck CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"boardcheck/internal/config"
	"boardcheck/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "boardcheck",
	Short: "boardcheck - browser-driven end-to-end checks for a Kanban board",
	Long: `boardcheck drives a real Chrome through the core workflows of a Kanban
application: sign in, create a board, add lists and cards, move cards between
lists, then close and delete the board.

Scenario inputs come from the fixtures directory. Every run is recorded in the
local history database unless history is disabled.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := logging.Initialize(cfg.Logging); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		if verbose {
			logging.SetLevel(zapcore.DebugLevel)
		}
		logger = logging.Get(logging.CategoryBoot)
		logger.Debug("config loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "boardcheck.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Minute, "Bound on the whole command")

	rootCmd.AddCommand(
		runCmd,
		watchCmd,
		fixturesCmd,
		historyCmd,
		browserCmd,
	)
}

func main() {
	err := rootCmd.Execute()
	_ = logging.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
