package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"boardcheck/internal/actions"
	"boardcheck/internal/config"
	"boardcheck/internal/diff"
	"boardcheck/internal/fixture"
	"boardcheck/internal/kanbantest"
	"boardcheck/internal/scenario"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testEmail    = "qa@example.com"
	testPassword = "s3cret"
)

func writeFixtures(t *testing.T, lists string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"credentials.json": `{"email": "` + testEmail + `", "password": "` + testPassword + `"}`,
		"lists.json":       lists,
		"cards.yaml":       "cards:\n  - listName: To Do\n    cardName: Task1\n  - listName: Doing\n    cardName: Task2\n",
		"movingCards.json": `[{"fromList": "To Do", "cardName": "Task1", "toList": "Done"}]`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func setup(t *testing.T) {
	t.Helper()
	t.Setenv(fixture.EnvEmail, "")
	t.Setenv(fixture.EnvPassword, "")
	logger = zap.NewNop()
	timeout = time.Minute
	cfg = config.DefaultConfig()
	cfg.ArtifactsDir = ""
	cfg.History.DatabasePath = filepath.Join(t.TempDir(), "history.db")
	runBoard, runJSON, runPlain, runNoHistory = "", false, true, false
	fixturesDir = ""
	historyLimit = 20
}

// useFakeApp points the run at an in-memory Kanban app instead of Chrome.
func useFakeApp(t *testing.T) *kanbantest.App {
	t.Helper()
	app := kanbantest.New(kanbantest.Options{
		Lag:   2 * time.Millisecond,
		Users: map[string]string{testEmail: testPassword},
	})
	cfg.App.BaseURL = app.BaseURL()
	cfg.App.IdentityOrigin = app.IdentityOrigin()
	cfg.Timeouts = config.TimeoutsConfig{
		Wait:            "500ms",
		PollInterval:    "1ms",
		MaxPollInterval: "10ms",
		Login:           "500ms",
		Scenario:        "30s",
		RetryPause:      "0s",
		Attempts:        2,
	}

	released := false
	orig := openDriver
	openDriver = func(ctx context.Context, c *config.Config) (actions.Driver, func(context.Context) error, error) {
		return app, func(context.Context) error { released = true; return nil }, nil
	}
	t.Cleanup(func() {
		openDriver = orig
		assert.True(t, released, "driver was not released")
	})
	return app
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "watch", "fixtures", "history", "browser"} {
		assert.Contains(t, names, want)
	}
}

func TestCheckFixtures(t *testing.T) {
	setup(t)
	fixturesDir = writeFixtures(t, `{"lists": ["To Do", "Doing", "Done"]}`)

	var err error
	output := captureOutput(t, func() {
		err = checkFixtures(nil, nil)
	})
	require.NoError(t, err)

	assert.Contains(t, output, "Lists (3)")
	assert.Contains(t, output, "To Do: [Task1]")
	assert.Contains(t, output, `"Task1": "To Do" -> "Done"`)
	assert.Contains(t, output, "OK")
	assert.NotContains(t, output, testPassword)
}

func TestCheckFixturesRejectsCollisions(t *testing.T) {
	setup(t)
	fixturesDir = writeFixtures(t, `{"lists": ["To Do", "Doing", "Done", "Board1"]}`)

	var err error
	captureOutput(t, func() {
		err = checkFixtures(nil, nil)
	})
	assert.ErrorIs(t, err, fixture.ErrNameCollision)
}

func TestExecuteRunRecordsHistory(t *testing.T) {
	setup(t)
	app := useFakeApp(t)
	cfg.Fixtures.Dir = writeFixtures(t, `{"lists": ["To Do", "Doing", "Done"]}`)

	var out bytes.Buffer
	report, err := executeRun(context.Background(), cfg, &out)
	require.NoError(t, err)
	for _, o := range report.Outcomes {
		assert.Equal(t, "PASSED", o.Result.String(), "%s: %s", o.Scenario, o.Error)
	}
	assert.True(t, report.Passed())
	assert.Contains(t, out.String(), "6 passed, 0 failed, 0 skipped")

	snap, ok := app.Board("Board1")
	require.True(t, ok)
	assert.True(t, snap.Deleted)

	output := captureOutput(t, func() {
		require.NoError(t, listRuns(nil, nil))
	})
	assert.Contains(t, output, report.RunID)
	assert.Contains(t, output, "PASSED")

	output = captureOutput(t, func() {
		require.NoError(t, scenarioStats(nil, nil))
	})
	assert.Contains(t, output, "move cards")
	assert.Contains(t, output, "100%")

	output = captureOutput(t, func() {
		require.NoError(t, showRun(nil, []string{report.RunID}))
	})
	assert.Contains(t, output, "boardcheck run "+report.RunID)
	assert.Contains(t, output, "log in: ok")

	output = captureOutput(t, func() {
		require.NoError(t, diffRuns(nil, []string{report.RunID, report.RunID}))
	})
	assert.Equal(t, "No differences", output)

	historyOlderThan = 0
	output = captureOutput(t, func() {
		require.NoError(t, pruneRuns(nil, nil))
	})
	assert.Contains(t, output, "Pruned 1 run(s)")
}

func TestExecuteRunMissingFixtureErrorsScenario(t *testing.T) {
	setup(t)
	useFakeApp(t)
	cfg.Fixtures.Dir = writeFixtures(t, `{"lists": ["To Do", "Doing", "Done"]}`)
	require.NoError(t, os.Remove(filepath.Join(cfg.Fixtures.Dir, "movingCards.json")))
	runNoHistory = true

	var out bytes.Buffer
	report, err := executeRun(context.Background(), cfg, &out)
	require.NoError(t, err)
	assert.False(t, report.Passed())

	o, ok := report.Outcome("move cards")
	require.True(t, ok)
	assert.Equal(t, "ERROR", o.Result.String())
	assert.Contains(t, o.Error, "fixture source not found")

	_, err = os.Stat(cfg.History.DatabasePath)
	assert.True(t, errors.Is(err, os.ErrNotExist), "history should not be written")
}

func TestExecuteRunJSONReport(t *testing.T) {
	setup(t)
	useFakeApp(t)
	cfg.Fixtures.Dir = writeFixtures(t, `{"lists": ["To Do", "Doing", "Done"]}`)
	runJSON, runNoHistory = true, true

	var out bytes.Buffer
	report, err := executeRun(context.Background(), cfg, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"run_id": "`+report.RunID+`"`)
	assert.Contains(t, out.String(), `"result": "PASSED"`)
}

func TestExecuteRunRejectsInvalidConfig(t *testing.T) {
	setup(t)
	cfg.App.BaseURL = "not a url"

	_, err := executeRun(context.Background(), cfg, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestReportLines(t *testing.T) {
	older := &scenario.Report{
		Outcomes: []scenario.Outcome{
			{Scenario: "authenticate", Result: scenario.Passed},
			{Scenario: "move cards", Result: scenario.Passed},
		},
		State: scenario.State{
			Lists: []string{"To Do", "Done"},
			Cards: map[string][]string{"Done": {"Task1"}},
		},
	}
	newer := &scenario.Report{
		Outcomes: []scenario.Outcome{
			{Scenario: "authenticate", Result: scenario.Passed},
			{Scenario: "move cards", Result: scenario.Failed, Step: `move "Task1": "To Do" -> "Done"`},
		},
		State: scenario.State{
			Lists: []string{"To Do", "Done"},
			Cards: map[string][]string{"To Do": {"Task1"}},
		},
	}

	assert.Equal(t, []string{
		"authenticate: PASSED",
		"move cards: PASSED",
		`list "To Do": `,
		`list "Done": Task1`,
	}, reportLines(older))

	var buf bytes.Buffer
	require.NoError(t, diff.Render(&buf, diff.Lines(reportLines(older), reportLines(newer))))
	assert.Contains(t, buf.String(), "  authenticate: PASSED\n")
	assert.Contains(t, buf.String(), "- move cards: PASSED\n")
	assert.Contains(t, buf.String(), "+ move cards: FAILED at ")
	assert.Contains(t, buf.String(), `+ list "To Do": Task1`)
}

func TestReadControlURL(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := readControlURL()
	assert.Error(t, err)

	require.NoError(t, os.MkdirAll(filepath.Dir(controlFile()), 0o755))
	require.NoError(t, os.WriteFile(controlFile(), []byte("ws://127.0.0.1:9222/devtools/browser/x\n"), 0o644))
	url, err := readControlURL()
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/x", url)
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		_, _ = io.Copy(&buf, rErr)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return strings.TrimSpace(<-done)
}
