package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"boardcheck/internal/diff"
	"boardcheck/internal/logging"
	"boardcheck/internal/scenario"
	"boardcheck/internal/store"

	"github.com/spf13/cobra"
)

var (
	historyLimit     int
	historyOlderThan time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded suite runs",
	RunE:  listRuns,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Pass rate of each scenario over recent runs",
	RunE:  scenarioStats,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Print the report of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  showRun,
}

var historyDiffCmd = &cobra.Command{
	Use:   "diff [old-run-id] [new-run-id]",
	Short: "Compare the outcomes and final board contents of two runs",
	Args:  cobra.ExactArgs(2),
	RunE:  diffRuns,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than --older-than",
	RunE:  pruneRuns,
}

func init() {
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to consider")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "Age of the runs to delete")

	historyCmd.AddCommand(historyStatsCmd, historyShowCmd, historyDiffCmd, historyPruneCmd)
}

func openHistory() (*store.HistoryStore, error) {
	if cfg.History.DatabasePath == "" {
		return nil, fmt.Errorf("history.database_path is not set")
	}
	return store.NewHistoryStore(cfg.History.DatabasePath, logging.Get(logging.CategoryStore))
}

func listRuns(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	hs, err := openHistory()
	if err != nil {
		return err
	}
	defer hs.Close()

	runs, err := hs.RecentRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}
	for _, r := range runs {
		status := "PASSED"
		if !r.OK() {
			status = "FAILED"
		}
		fmt.Printf("%-36s  %-6s  %s  %-12s  %d passed, %d failed, %d skipped, %d errored\n",
			r.RunID, status, r.Started.Local().Format(time.DateTime), r.Board,
			r.Passed, r.Failed, r.Skipped, r.Errored)
	}
	return nil
}

func scenarioStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	hs, err := openHistory()
	if err != nil {
		return err
	}
	defer hs.Close()

	stats, err := hs.ScenarioStats(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}
	for _, s := range stats {
		fmt.Printf("%-16s %3.0f%%  (%d/%d)", s.Scenario, 100*s.PassRate(), s.Passed, s.Runs)
		if s.LastFailure != "" {
			fmt.Printf("  last failure at %q: %s", s.LastStep, s.LastFailure)
		}
		fmt.Println()
	}
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	hs, err := openHistory()
	if err != nil {
		return err
	}
	defer hs.Close()

	report, err := hs.Report(ctx, args[0])
	if err != nil {
		return err
	}

	console := scenario.NewConsoleReporter(os.Stdout, scenario.PlainConsoleStyles())
	console.Verbose = true
	names := make([]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		names = append(names, o.Scenario)
	}
	console.SuiteStarted(report.RunID, report.Board, names)
	for _, o := range report.Outcomes {
		console.ScenarioFinished(o)
	}
	console.SuiteFinished(report)
	return nil
}

// reportLines renders the parts of a report worth comparing across runs.
func reportLines(r *scenario.Report) []string {
	lines := make([]string, 0, len(r.Outcomes)+len(r.State.Lists))
	for _, o := range r.Outcomes {
		line := fmt.Sprintf("%s: %s", o.Scenario, o.Result)
		if o.Step != "" {
			line += fmt.Sprintf(" at %q", o.Step)
		}
		lines = append(lines, line)
	}
	for _, l := range r.State.Lists {
		lines = append(lines, fmt.Sprintf("list %q: %s", l, strings.Join(r.State.Cards[l], ", ")))
	}
	return lines
}

func diffRuns(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	hs, err := openHistory()
	if err != nil {
		return err
	}
	defer hs.Close()

	older, err := hs.Report(ctx, args[0])
	if err != nil {
		return err
	}
	newer, err := hs.Report(ctx, args[1])
	if err != nil {
		return err
	}

	lines := diff.Lines(reportLines(older), reportLines(newer))
	if !diff.Changed(lines) {
		fmt.Println("No differences")
		return nil
	}
	fmt.Printf("--- %s\n+++ %s\n", older.RunID, newer.RunID)
	return diff.Render(os.Stdout, lines)
}

func pruneRuns(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	hs, err := openHistory()
	if err != nil {
		return err
	}
	defer hs.Close()

	n, err := hs.Prune(ctx, time.Now().Add(-historyOlderThan))
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d run(s)\n", n)
	return nil
}
