package actions

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"boardcheck/internal/locator"
)

// Driver is the page the commands act on. Resolve is a single-shot lookup; all
// waiting happens in the locator catalog.
type Driver interface {
	locator.Resolver
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
}

// Capturer is implemented by drivers that can capture the rendered page.
type Capturer interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Origin returns scheme://host of raw, or "" when raw has no host.
func Origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// SameOrigin reports whether a and b share scheme and host.
func SameOrigin(a, b string) bool {
	oa := Origin(a)
	return oa != "" && oa == Origin(b)
}

// OriginScope confines lookups to pages served from one origin. While the page is
// on any other origin every lookup reports "not rendered yet", so a catalog wait
// started before a cross-origin redirect completes simply keeps polling.
type OriginScope struct {
	driver Driver
	origin string
}

// NewOriginScope returns a scope bound to origin.
func NewOriginScope(d Driver, origin string) OriginScope {
	return OriginScope{driver: d, origin: Origin(origin)}
}

// Resolve implements locator.Resolver.
func (s OriginScope) Resolve(ctx context.Context, c locator.Concept, args ...string) ([]locator.Element, error) {
	current, err := s.driver.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	if got := Origin(current); got != s.origin {
		return nil, fmt.Errorf("page is on %q, waiting for %q", got, s.origin)
	}
	return s.driver.Resolve(ctx, c, args...)
}

// InOrigin runs fn against a catalog confined to scope. The only data crossing into
// fn is args, passed by value.
func InOrigin[A any](ctx context.Context, cat *locator.Catalog, scope OriginScope, args A,
	fn func(ctx context.Context, cat *locator.Catalog, args A) error) error {
	return fn(ctx, cat.With(scope), args)
}
