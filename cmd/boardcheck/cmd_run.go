package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"boardcheck/internal/actions"
	"boardcheck/internal/appfault"
	"boardcheck/internal/browser"
	"boardcheck/internal/config"
	"boardcheck/internal/fixture"
	"boardcheck/internal/logging"
	"boardcheck/internal/scenario"
	"boardcheck/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runBoard     string
	runJSON      bool
	runPlain     bool
	runNoHistory bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the board workflow suite once",
	Long: `Runs authenticate, create board, create lists, create cards, move cards and
delete board in that order against one browser page. Exits non-zero unless every
scenario passes.`,
	RunE: runSuite,
}

func init() {
	runCmd.Flags().StringVar(&runBoard, "board", "", "Board name (overrides app.board_name)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the report as JSON")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "Disable colors in console output")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record the run")
}

// errRunFailed is returned when at least one scenario did not pass.
var errRunFailed = errors.New("suite did not pass")

// openDriver opens the page the suite drives and returns its release function.
var openDriver = openBrowserDriver

func openBrowserDriver(ctx context.Context, c *config.Config) (actions.Driver, func(context.Context) error, error) {
	bcfg := c.Browser
	if bcfg.DebuggerURL == "" {
		if url, err := readControlURL(); err == nil {
			logger.Info("Attaching to launched browser", zap.String("control_url", url))
			bcfg.DebuggerURL = url
		}
	}

	mgr := browser.NewSessionManager(bcfg, logging.Get(logging.CategoryBrowser))
	if err := mgr.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}
	page, err := mgr.Open(ctx, c.App.BaseURL)
	if err != nil {
		_ = mgr.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("failed to open %s: %w", c.App.BaseURL, err)
	}
	return page, mgr.Shutdown, nil
}

// runSuite runs the suite under the global timeout, stopping on SIGINT/SIGTERM.
func runSuite(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if runBoard != "" {
		cfg.App.BoardName = runBoard
	}
	report, err := executeRun(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	if !report.Passed() {
		return errRunFailed
	}
	return nil
}

// suiteFixtures preloads and validates every fixture source. When a source cannot
// be loaded the loader itself is handed to the suite, so the scenarios that need
// the missing source report ERROR and the rest still run.
func suiteFixtures(ctx context.Context, c *config.Config) (scenario.Fixtures, error) {
	loader := fixture.NewLoader(c.Fixtures.Dir, logging.Get(logging.CategoryFixture))
	if c.Fixtures.EnvFile != "" {
		loader.EnvFile = c.Fixtures.EnvFile
	}

	set, err := loader.LoadAll(ctx)
	if err != nil {
		logger.Warn("Fixtures incomplete, affected scenarios will error", zap.Error(err))
		return loader, nil
	}
	if err := set.Validate(c.App.BoardName); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}
	return fixture.Memory{Set: *set}, nil
}

func reporters(out io.Writer) []scenario.Reporter {
	if runJSON {
		return []scenario.Reporter{scenario.NewJSONReporter(out)}
	}
	styles := scenario.DefaultConsoleStyles()
	if runPlain {
		styles = scenario.PlainConsoleStyles()
	}
	console := scenario.NewConsoleReporter(out, styles)
	console.Verbose = verbose
	return []scenario.Reporter{console}
}

// executeRun performs one suite run and records it. The returned error covers
// setup problems only; scenario failures are in the report.
func executeRun(ctx context.Context, c *config.Config, out io.Writer) (*scenario.Report, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	fixtures, err := suiteFixtures(ctx, c)
	if err != nil {
		return nil, err
	}

	driver, release, err := openDriver(ctx, c)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			logger.Warn("Failed to release browser", zap.Error(err))
		}
	}()

	commands := actions.New(driver, c.ActionOptions(), logging.Get(logging.CategoryActions))
	filter := appfault.NewFilter(c.Suppress, logging.Get(logging.CategoryFaults))
	suite := scenario.New(commands, fixtures, filter, scenario.Options{
		BoardName:       c.App.BoardName,
		ScenarioTimeout: c.GetScenarioTimeout(),
		Reporters:       reporters(out),
	}, logging.Get(logging.CategoryScenario))

	report := suite.Run(ctx)

	if paths := commands.TakeArtifacts(); len(paths) > 0 && !runJSON {
		fmt.Fprintln(out, "Screenshots:")
		for _, p := range paths {
			fmt.Fprintf(out, "  %s\n", p)
		}
	}

	if c.History.Enabled && !runNoHistory {
		recordRun(c, report)
	}
	return report, nil
}

// recordRun stores the report. Failing to record never fails the run.
func recordRun(c *config.Config, report *scenario.Report) {
	hs, err := store.NewHistoryStore(c.History.DatabasePath, logging.Get(logging.CategoryStore))
	if err != nil {
		logger.Warn("Failed to open history", zap.Error(err))
		return
	}
	defer hs.Close()
	if err := hs.RecordRun(context.Background(), report); err != nil {
		logger.Warn("Failed to record run", zap.String("run_id", report.RunID), zap.Error(err))
	}
}
