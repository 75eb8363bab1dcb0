package diff

import (
	"bytes"
	"testing"
)

func TestLines_Addition(t *testing.T) {
	lines := NewEngine().Lines(
		[]string{"To Do: Task1", "Done: Task2"},
		[]string{"To Do: Task1", "Doing: Task3", "Done: Task2"},
	)

	want := []Line{
		{LineContext, "To Do: Task1"},
		{LineAdded, "Doing: Task3"},
		{LineContext, "Done: Task2"},
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %+v", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %+v, got %+v", i, want[i], lines[i])
		}
	}
	if !Changed(lines) {
		t.Error("expected a change")
	}
}

func TestLines_Replacement(t *testing.T) {
	lines := Lines(
		[]string{"authenticate: PASSED", "move cards: PASSED"},
		[]string{"authenticate: PASSED", "move cards: FAILED"},
	)

	var removed, added bool
	for _, l := range lines {
		if l.Type == LineRemoved && l.Content == "move cards: PASSED" {
			removed = true
		}
		if l.Type == LineAdded && l.Content == "move cards: FAILED" {
			added = true
		}
	}
	if !removed || !added {
		t.Errorf("expected replacement, got %+v", lines)
	}
}

func TestLines_NoChanges(t *testing.T) {
	lines := Lines([]string{"a", "b"}, []string{"a", "b"})
	if Changed(lines) {
		t.Errorf("expected no changes, got %+v", lines)
	}
	if len(Lines(nil, nil)) != 0 {
		t.Error("expected no lines for empty input")
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, []Line{{LineContext, "a"}, {LineRemoved, "b"}, {LineAdded, "c"}})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "  a\n- b\n+ c\n"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
