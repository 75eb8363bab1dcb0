package scenario

import (
	"context"
	"errors"
	"testing"

	"boardcheck/internal/failure"
	"boardcheck/internal/locator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStateCloneIsDeep(t *testing.T) {
	s := NewState("B")
	s.Lists = []string{"L"}
	s.addCard("L", "a")

	c := s.Clone()
	c.Lists[0] = "changed"
	c.addCard("L", "b")
	assert.Equal(t, []string{"L"}, s.Lists)
	assert.Equal(t, []string{"a"}, s.Cards["L"])
}

func TestStateMoveCardTakesLastOccurrence(t *testing.T) {
	s := NewState("B")
	for _, n := range []string{"a", "b", "a"} {
		s.addCard("From", n)
	}
	s.moveCard("From", "a", "To")
	assert.Equal(t, []string{"a", "b"}, s.Cards["From"])
	assert.Equal(t, []string{"a"}, s.Cards["To"])
}

func TestPreconditions(t *testing.T) {
	s := NewState("B")
	assert.ErrorIs(t, s.requireBoard(Open), ErrPrecondition)

	s.Authenticated = true
	err := s.requireBoard(Open)
	require.ErrorIs(t, err, ErrPrecondition)
	assert.Contains(t, err.Error(), `board "B" is absent`)

	s.Board.Lifecycle = Closed
	assert.NoError(t, s.requireBoard(Open, Closed))
}

func TestLifecycleText(t *testing.T) {
	b, err := Closed.MarshalText()
	require.NoError(t, err)
	var l Lifecycle
	require.NoError(t, l.UnmarshalText(b))
	assert.Equal(t, Closed, l)
	assert.Error(t, l.UnmarshalText([]byte("archived")))
}

func TestAssertions(t *testing.T) {
	got := []string{"a", "b", "a"}
	tests := []struct {
		name string
		err  error
		ok   bool
	}{
		{"includes", assertIncludes("s", got, "a", "b"), true},
		{"includes missing", assertIncludes("s", got, "c"), false},
		{"excludes", assertExcludes("s", got, "c"), true},
		{"excludes present", assertExcludes("s", got, "b"), false},
		{"count", assertCount("s", got, "a", 2), true},
		{"count wrong", assertCount("s", got, "a", 1), false},
		{"in order", assertInOrder("s", got, []string{"b", "a"}), true},
		{"out of order", assertInOrder("s", got, []string{"b", "b"}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.ok {
				assert.NoError(t, tt.err)
				return
			}
			assert.True(t, errors.Is(tt.err, failure.ErrAssertionFailed), "got %v", tt.err)
		})
	}
}

func TestAssertRendered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.app.Navigate(ctx, h.app.BaseURL()))

	assert.NoError(t, assertRendered(ctx, h.cmds.Catalog(), locator.LoginLink))
	err := assertRendered(ctx, h.cmds.Catalog(), locator.BoardHeader, "Nope")
	require.Error(t, err)
	assert.Equal(t, failure.KindAssertionFailed, failure.KindOf(err))
	assert.Contains(t, err.Error(), "board header")
	assert.Contains(t, err.Error(), "expected rendered, got not rendered")
}

func TestStepDrainsApplicationErrors(t *testing.T) {
	h := newHarness(t)
	h.filter.Register(h.app)
	env := &Env{Commands: h.cmds, Filter: h.filter, Logger: zaptest.NewLogger(t), scenario: "s"}

	err := env.Step(context.Background(), "quiet", func(context.Context) error {
		h.app.Throw("ResizeObserver loop completed with undelivered notifications")
		return nil
	})
	require.NoError(t, err)

	err = env.Step(context.Background(), "noisy", func(context.Context) error {
		h.app.Throw("ReferenceError: x is not defined")
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, "noisy", failure.StepOf(err))
	assert.True(t, errors.Is(err, failure.ErrApplicationError))

	steps := env.Steps()
	require.Len(t, steps, 2)
	assert.Empty(t, steps[0].Error)
	assert.Contains(t, steps[1].Error, "ReferenceError")
}
