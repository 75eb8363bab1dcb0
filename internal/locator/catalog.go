package locator

import (
	"context"
	"errors"
	"fmt"

	"boardcheck/internal/failure"
	"boardcheck/internal/wait"
)

// Key is a non-printable key the suite presses.
type Key string

const (
	KeyEnter  Key = "Enter"
	KeyEscape Key = "Escape"
)

// Element is a live handle to a rendered element.
type Element interface {
	Click(ctx context.Context) error
	Input(ctx context.Context, text string) error
	Press(ctx context.Context, key Key) error
	Text(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
}

// Resolver performs a single, non-waiting lookup of a concept against the current
// page. An empty result with a nil error means "not rendered yet".
type Resolver interface {
	Resolve(ctx context.Context, c Concept, args ...string) ([]Element, error)
}

// ErrScopeMissing is returned by resolvers when a scoped concept's parent (for
// example the list container of "cards of list") is not rendered.
var ErrScopeMissing = errors.New("scope not rendered")

// Catalog resolves concepts with bounded polling.
type Catalog struct {
	resolver Resolver
	policy   wait.Policy
}

// NewCatalog returns a catalog that polls r under policy.
func NewCatalog(r Resolver, policy wait.Policy) *Catalog {
	return &Catalog{resolver: r, policy: policy}
}

// Policy returns the catalog's wait policy.
func (c *Catalog) Policy() wait.Policy { return c.policy }

// With returns a catalog sharing the policy but resolving through r.
func (c *Catalog) With(r Resolver) *Catalog {
	return &Catalog{resolver: r, policy: c.policy}
}

func (c *Catalog) resolve(ctx context.Context, concept Concept, args []string) ([]Element, error) {
	if _, err := concept.Query(args...); err != nil {
		return nil, wait.Stop(err)
	}
	return c.resolver.Resolve(ctx, concept, args...)
}

// Find waits until at least one element matches and returns the first one.
func (c *Catalog) Find(ctx context.Context, concept Concept, args ...string) (Element, error) {
	els, err := wait.Until(ctx, c.policy, func(ctx context.Context) ([]Element, bool, error) {
		els, err := c.resolve(ctx, concept, args)
		return els, err == nil && len(els) > 0, err
	})
	if err != nil {
		return nil, notFound(concept, args, err)
	}
	return els[0], nil
}

// FindAll waits until the concept's scope is rendered and returns every match,
// which may be none.
func (c *Catalog) FindAll(ctx context.Context, concept Concept, args ...string) ([]Element, error) {
	els, err := wait.Until(ctx, c.policy, func(ctx context.Context) ([]Element, bool, error) {
		els, err := c.resolve(ctx, concept, args)
		return els, err == nil, err
	})
	if err != nil {
		return nil, notFound(concept, args, err)
	}
	return els, nil
}

// Texts waits until the concept's scope is rendered and returns the text of every
// match in document order. Elements that detach while being read cause a retry.
func (c *Catalog) Texts(ctx context.Context, concept Concept, args ...string) ([]string, error) {
	return c.TextsWhere(ctx, concept, nil, args...)
}

// TextsWhere is Texts that keeps polling until ready accepts the texts read. On
// timeout the last texts read are returned along with the error.
func (c *Catalog) TextsWhere(ctx context.Context, concept Concept, ready func([]string) bool, args ...string) ([]string, error) {
	var (
		last []string
		read bool
	)
	texts, err := wait.Until(ctx, c.policy, func(ctx context.Context) ([]string, bool, error) {
		els, err := c.resolve(ctx, concept, args)
		if err != nil {
			return nil, false, err
		}
		out := make([]string, 0, len(els))
		for _, el := range els {
			t, err := el.Text(ctx)
			if err != nil {
				return nil, false, err
			}
			out = append(out, t)
		}
		last, read = out, true
		return out, ready == nil || ready(out), nil
	})
	switch {
	case err == nil:
		return texts, nil
	case read && errors.Is(err, wait.ErrTimeout):
		return last, fmt.Errorf("%s %q read %q: %w", concept, args, last, err)
	default:
		return nil, notFound(concept, args, err)
	}
}

// WaitAbsent waits until nothing matches the concept.
func (c *Catalog) WaitAbsent(ctx context.Context, concept Concept, args ...string) error {
	err := wait.Condition(ctx, c.policy, func(ctx context.Context) (bool, error) {
		els, err := c.resolve(ctx, concept, args)
		if errors.Is(err, ErrScopeMissing) {
			return true, nil
		}
		return err == nil && len(els) == 0, err
	})
	if err != nil {
		return fmt.Errorf("%s still rendered: %w", concept, err)
	}
	return nil
}

// Present checks once, without waiting, whether the concept is rendered.
func (c *Catalog) Present(ctx context.Context, concept Concept, args ...string) bool {
	els, err := c.resolve(ctx, concept, args)
	return err == nil && len(els) > 0
}

func notFound(concept Concept, args []string, err error) error {
	// Cancellation of the caller's context is not a locator failure.
	if !errors.Is(err, wait.ErrTimeout) && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	return failure.NotFound(string(concept), args, err)
}
