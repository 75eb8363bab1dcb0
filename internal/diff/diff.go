// Package diff computes line diffs between two renderings of a run, such as the
// outcome list or the final board contents.
package diff

import (
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType represents the type of diff line
type LineType int

const (
	LineContext LineType = iota // Unchanged line
	LineAdded                   // Only in the newer rendering
	LineRemoved                 // Only in the older rendering
)

func (t LineType) prefix() string {
	switch t {
	case LineAdded:
		return "+ "
	case LineRemoved:
		return "- "
	default:
		return "  "
	}
}

// Line is one line of a diff.
type Line struct {
	Type    LineType
	Content string
}

// Engine computes line diffs.
type Engine struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewEngine creates a diff engine that never times out.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp}
}

// DefaultEngine is a shared engine.
var DefaultEngine = NewEngine()

// Lines diffs old against new line by line.
func (e *Engine) Lines(old, new []string) []Line {
	a, b, lineArray := e.dmp.DiffLinesToChars(joinLines(old), joinLines(new))
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	var out []Line
	for _, d := range diffs {
		typ := LineContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			typ = LineAdded
		case diffmatchpatch.DiffDelete:
			typ = LineRemoved
		}
		for _, l := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out = append(out, Line{Type: typ, Content: l})
		}
	}
	return out
}

// Lines diffs with the default engine.
func Lines(old, new []string) []Line {
	return DefaultEngine.Lines(old, new)
}

// joinLines terminates every line so that the last one compares like the others.
func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Changed reports whether any line was added or removed.
func Changed(lines []Line) bool {
	for _, l := range lines {
		if l.Type != LineContext {
			return true
		}
	}
	return false
}

// Render writes lines with "+ ", "- " or "  " prefixes.
func Render(w io.Writer, lines []Line) error {
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%s%s\n", l.Type.prefix(), l.Content); err != nil {
			return err
		}
	}
	return nil
}
