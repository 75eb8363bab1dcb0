package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Reporter receives suite progress. Calls are made from the goroutine running
// the suite, in order.
type Reporter interface {
	SuiteStarted(runID, board string, scenarios []string)
	ScenarioStarted(name string)
	ScenarioFinished(o Outcome)
	SuiteFinished(r *Report)
}

var (
	passColor = lipgloss.Color("#8BC34A")
	failColor = lipgloss.Color("#e53935")
	skipColor = lipgloss.Color("#FFC107")
	infoColor = lipgloss.Color("#2196F3")
)

// ConsoleStyles are the styles used by the console reporter.
type ConsoleStyles struct {
	Header lipgloss.Style
	Pass   lipgloss.Style
	Fail   lipgloss.Style
	Skip   lipgloss.Style
	Muted  lipgloss.Style
	Detail lipgloss.Style
}

// DefaultConsoleStyles returns the colored styles.
func DefaultConsoleStyles() ConsoleStyles {
	return ConsoleStyles{
		Header: lipgloss.NewStyle().
			Foreground(infoColor).
			Bold(true),
		Pass: lipgloss.NewStyle().
			Foreground(passColor).
			Bold(true),
		Fail: lipgloss.NewStyle().
			Foreground(failColor).
			Bold(true),
		Skip: lipgloss.NewStyle().
			Foreground(skipColor).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Faint(true),
		Detail: lipgloss.NewStyle().
			PaddingLeft(4),
	}
}

// PlainConsoleStyles returns styles that render no escape sequences.
func PlainConsoleStyles() ConsoleStyles {
	plain := lipgloss.NewStyle()
	return ConsoleStyles{
		Header: plain,
		Pass:   plain,
		Fail:   plain,
		Skip:   plain,
		Muted:  plain,
		Detail: plain.PaddingLeft(4),
	}
}

// ConsoleReporter prints one line per scenario and a summary.
type ConsoleReporter struct {
	w      io.Writer
	styles ConsoleStyles
	// Verbose also prints every step of every scenario.
	Verbose bool
}

// NewConsoleReporter writes to w using styles.
func NewConsoleReporter(w io.Writer, styles ConsoleStyles) *ConsoleReporter {
	return &ConsoleReporter{w: w, styles: styles}
}

func (c *ConsoleReporter) SuiteStarted(runID, board string, scenarios []string) {
	fmt.Fprintln(c.w, c.styles.Header.Render(fmt.Sprintf("boardcheck run %s", runID)))
	fmt.Fprintln(c.w, c.styles.Muted.Render(fmt.Sprintf("board %q, %d scenarios", board, len(scenarios))))
}

func (c *ConsoleReporter) ScenarioStarted(string) {}

func (c *ConsoleReporter) badge(r Result) string {
	label := fmt.Sprintf("%-7s", r.String())
	switch r {
	case Passed:
		return c.styles.Pass.Render(label)
	case Skipped:
		return c.styles.Skip.Render(label)
	default:
		return c.styles.Fail.Render(label)
	}
}

func (c *ConsoleReporter) ScenarioFinished(o Outcome) {
	fmt.Fprintf(c.w, "%s %s %s\n", c.badge(o.Result), o.Scenario, c.styles.Muted.Render(o.Duration.Round(time.Millisecond).String()))
	if c.Verbose {
		for _, s := range o.Steps {
			mark := "ok"
			if s.Error != "" {
				mark = "failed"
			}
			fmt.Fprintln(c.w, c.styles.Detail.Render(fmt.Sprintf("%s: %s", s.Name, mark)))
		}
	}
	if o.Error != "" {
		fmt.Fprintln(c.w, c.styles.Detail.Render(o.Error))
	}
}

func (c *ConsoleReporter) SuiteFinished(r *Report) {
	parts := []string{
		c.styles.Pass.Render(fmt.Sprintf("%d passed", r.Count(Passed))),
		c.styles.Fail.Render(fmt.Sprintf("%d failed", r.Count(Failed)+r.Count(Errored))),
		c.styles.Skip.Render(fmt.Sprintf("%d skipped", r.Count(Skipped))),
	}
	fmt.Fprintln(c.w, strings.Join(parts, ", "))
	if r.Faults.Ignored > 0 || r.Faults.Genuine > 0 {
		fmt.Fprintln(c.w, c.styles.Muted.Render(fmt.Sprintf("application errors: %d ignored, %d genuine", r.Faults.Ignored, r.Faults.Genuine)))
	}
}

// JSONReporter writes the final report as one JSON document.
type JSONReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONReporter writes to w.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{w: w}
}

func (j *JSONReporter) SuiteStarted(string, string, []string) {}
func (j *JSONReporter) ScenarioStarted(string)                {}
func (j *JSONReporter) ScenarioFinished(Outcome)              {}

func (j *JSONReporter) SuiteFinished(r *Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(r)
}
