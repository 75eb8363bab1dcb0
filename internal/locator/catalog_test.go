package locator

import (
	"context"
	"errors"
	"testing"
	"time"

	"boardcheck/internal/failure"
	"boardcheck/internal/wait"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubElement struct{ text string }

func (e stubElement) Click(context.Context) error { return nil }
func (e stubElement) Input(context.Context, string) error { return nil }
func (e stubElement) Press(context.Context, Key) error { return nil }
func (e stubElement) Text(context.Context) (string, error) { return e.text, nil }
func (e stubElement) Visible(context.Context) (bool, error) { return true, nil }

// scriptedResolver returns results[i] on the i-th call, repeating the last one.
type scriptedResolver struct {
	calls   int
	results [][]Element
	errs    []error
}

func (r *scriptedResolver) Resolve(_ context.Context, _ Concept, _ ...string) ([]Element, error) {
	i := r.calls
	r.calls++
	if i >= len(r.results) {
		i = len(r.results) - 1
	}
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	return r.results[i], err
}

var quick = wait.Policy{Timeout: 100 * time.Millisecond, Interval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func TestQueryArity(t *testing.T) {
	_, err := CardInList.Query("To Do")
	require.Error(t, err)

	q, err := CardInList.Query("To Do", "Task1")
	require.NoError(t, err)
	assert.Equal(t, "Task1", q.Text)
	assert.True(t, q.Exact)
	require.NotNil(t, q.Within)
	assert.Equal(t, "To Do", q.Within.Text)
	assert.Equal(t, "li", q.Within.Closest)

	_, err = Concept("nope").Query()
	assert.Error(t, err)
}

func TestEveryConceptBuilds(t *testing.T) {
	for _, c := range Concepts() {
		args := make([]string, c.Arity())
		for i := range args {
			args[i] = "x"
		}
		q, err := c.Query(args...)
		require.NoError(t, err, c)
		assert.NotEmpty(t, q.Selector, c)
	}
}

func TestQueryString(t *testing.T) {
	q, err := AddCardButton.Query("Doing")
	require.NoError(t, err)
	assert.Equal(t, `li h2[text=="Doing"] ^li >> button[text~="Add a card"]`, q.String())
}

func TestFindWaitsForRender(t *testing.T) {
	r := &scriptedResolver{results: [][]Element{nil, nil, {stubElement{text: "Board1"}}}}
	cat := NewCatalog(r, quick)

	el, err := cat.Find(context.Background(), BoardHeader, "Board1")
	require.NoError(t, err)
	text, _ := el.Text(context.Background())
	assert.Equal(t, "Board1", text)
	assert.Equal(t, 3, r.calls)
}

func TestFindTimesOutAsNotFound(t *testing.T) {
	r := &scriptedResolver{results: [][]Element{nil}}
	cat := NewCatalog(r, quick)

	_, err := cat.Find(context.Background(), MoveConfirm)
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrNotFound))
	assert.True(t, errors.Is(err, wait.ErrTimeout))
}

func TestFindAllAcceptsEmptyOnceScopeExists(t *testing.T) {
	r := &scriptedResolver{
		results: [][]Element{nil, nil},
		errs:    []error{ErrScopeMissing, nil},
	}
	cat := NewCatalog(r, quick)

	els, err := cat.FindAll(context.Background(), CardsOfList, "Done")
	require.NoError(t, err)
	assert.Empty(t, els)
	assert.Equal(t, 2, r.calls)
}

func TestWaitAbsent(t *testing.T) {
	r := &scriptedResolver{results: [][]Element{{stubElement{}}, {stubElement{}}, nil}}
	cat := NewCatalog(r, quick)
	require.NoError(t, cat.WaitAbsent(context.Background(), CardInList, "To Do", "Task1"))

	stuck := NewCatalog(&scriptedResolver{results: [][]Element{{stubElement{}}}}, quick)
	err := stuck.WaitAbsent(context.Background(), CardInList, "To Do", "Task1")
	assert.ErrorIs(t, err, wait.ErrTimeout)
}

func TestPresentDoesNotWait(t *testing.T) {
	r := &scriptedResolver{results: [][]Element{nil, {stubElement{}}}}
	cat := NewCatalog(r, quick)
	assert.False(t, cat.Present(context.Background(), BoardClosedBanner))
	assert.Equal(t, 1, r.calls)
}

func TestFindRejectsWrongArity(t *testing.T) {
	r := &scriptedResolver{results: [][]Element{{stubElement{}}}}
	cat := NewCatalog(r, quick)
	_, err := cat.Find(context.Background(), ListContainer)
	require.Error(t, err)
	assert.Equal(t, 0, r.calls)
}

func TestTextsReadsInOrder(t *testing.T) {
	r := &scriptedResolver{
		results: [][]Element{nil, {stubElement{text: "Task1"}, stubElement{text: "Task2"}}},
		errs:    []error{ErrScopeMissing},
	}
	cat := NewCatalog(r, quick)

	texts, err := cat.Texts(context.Background(), CardsOfList, "To Do")
	require.NoError(t, err)
	assert.Equal(t, []string{"Task1", "Task2"}, texts)
}

func TestTextsMissingScopeIsNotFound(t *testing.T) {
	r := &scriptedResolver{results: [][]Element{nil}, errs: []error{ErrScopeMissing}}
	cat := NewCatalog(r, quick)

	_, err := cat.Texts(context.Background(), CardsOfList, "Nope")
	assert.ErrorIs(t, err, failure.ErrNotFound)
	assert.ErrorIs(t, err, ErrScopeMissing)
}

func TestTextsWhereReturnsLastReadOnTimeout(t *testing.T) {
	r := &scriptedResolver{results: [][]Element{{stubElement{text: "Task1"}}}}
	cat := NewCatalog(r, quick)

	last, err := cat.TextsWhere(context.Background(), CardsOfList, func(texts []string) bool {
		return len(texts) == 2
	}, "To Do")
	require.Error(t, err)
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.False(t, errors.Is(err, failure.ErrNotFound))
	assert.Equal(t, []string{"Task1"}, last)
}
