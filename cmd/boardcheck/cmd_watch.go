package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"boardcheck/internal/fixture"
	"boardcheck/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the suite, then again whenever a fixture file changes",
	RunE:  watchSuite,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Quiet period before a rerun")
	watchCmd.Flags().StringVar(&runBoard, "board", "", "Board name (overrides app.board_name)")
	watchCmd.Flags().BoolVar(&runPlain, "plain", false, "Disable colors in console output")
	watchCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record runs")
}

// watchSuite runs until interrupted. Each run gets the global timeout and runs are
// serialized.
func watchSuite(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runBoard != "" {
		cfg.App.BoardName = runBoard
	}

	var mu sync.Mutex
	runOnce := func(ctx context.Context) {
		mu.Lock()
		defer mu.Unlock()
		rctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		report, err := executeRun(rctx, cfg, os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		logger.Info("Run finished", zap.String("run_id", report.RunID), zap.Bool("passed", report.Passed()))
	}

	w, err := fixture.NewWatcher(cfg.Fixtures.Dir, watchDebounce, func(ctx context.Context, paths []string) {
		fmt.Printf("\nFixtures changed: %v\n", paths)
		runOnce(ctx)
	}, logging.Get(logging.CategoryFixture))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.Fixtures.Dir, err)
	}
	defer w.Stop()

	runOnce(ctx)
	fmt.Printf("Watching %s, press Ctrl+C to stop\n", cfg.Fixtures.Dir)
	<-ctx.Done()
	return nil
}
