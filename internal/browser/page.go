package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"boardcheck/internal/locator"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Page is one browser tab. It resolves locator concepts against the live DOM and
// reports uncaught exceptions to the registered sink.
type Page struct {
	id     string
	page   *rod.Page
	cfg    Config
	logger *zap.Logger

	mu   sync.Mutex
	sink func(message string)
}

func newPage(id string, page *rod.Page, cfg Config, logger *zap.Logger) *Page {
	return &Page{id: id, page: page, cfg: cfg, logger: logger}
}

// ID returns the session id of the page.
func (p *Page) ID() string { return p.id }

// Rod exposes the underlying rod page.
func (p *Page) Rod() *rod.Page { return p.page }

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx).Timeout(p.cfg.NavigationTimeout())
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	p.logger.Debug("navigated", zap.String("url", url))
	return nil
}

// CurrentURL returns the URL of the top frame.
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

// Screenshot captures the viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// SetExceptionSink registers the function called with the message of every
// uncaught exception thrown by the page.
func (p *Page) SetExceptionSink(sink func(message string)) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

func (p *Page) observeException(msg string) {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	p.logger.Debug("uncaught exception", zap.String("message", msg))
	if sink != nil {
		sink(msg)
	}
}

// Resolve performs a single lookup of c on the current DOM. It never waits: an
// empty result means the concept is not rendered yet.
func (p *Page) Resolve(ctx context.Context, c locator.Concept, args ...string) ([]locator.Element, error) {
	q, err := c.Query(args...)
	if err != nil {
		return nil, err
	}
	found, err := query(ctx, p.page.Context(ctx), q)
	if err != nil {
		return nil, err
	}
	out := make([]locator.Element, 0, len(found))
	for _, el := range found {
		out = append(out, element{el: el})
	}
	return out, nil
}

// container is satisfied by both *rod.Page and *rod.Element.
type container interface {
	Elements(selector string) (rod.Elements, error)
}

func query(ctx context.Context, root container, q locator.Query) (rod.Elements, error) {
	if q.Within != nil {
		scopes, err := query(ctx, root, *q.Within)
		if err != nil {
			return nil, err
		}
		if len(scopes) == 0 {
			return nil, fmt.Errorf("%s: %w", q.Within, locator.ErrScopeMissing)
		}
		root = scopes[0].Context(ctx)
	}

	candidates, err := root.Elements(q.Selector)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Selector, err)
	}

	var out rod.Elements
	for _, el := range candidates {
		ok, err := matches(el, q)
		if err != nil {
			// The node went away between the query and the read.
			continue
		}
		if !ok {
			continue
		}
		if q.Closest != "" {
			parents, err := el.Parents(q.Closest)
			if err != nil || len(parents) == 0 {
				continue
			}
			el = parents[0]
		}
		out = append(out, el)
	}
	return out, nil
}

func matches(el *rod.Element, q locator.Query) (bool, error) {
	visible, err := el.Visible()
	if err != nil || !visible {
		return false, err
	}
	if q.Text == "" {
		return true, nil
	}
	text, err := el.Text()
	if err != nil {
		return false, err
	}
	text = strings.TrimSpace(text)
	if q.Exact {
		return text == q.Text, nil
	}
	return strings.Contains(text, q.Text), nil
}

// element adapts a rod element to locator.Element.
type element struct {
	el *rod.Element
}

func (e element) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e element) Input(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select text: %w", err)
	}
	return el.Input(text)
}

func (e element) Press(ctx context.Context, key locator.Key) error {
	var k input.Key
	switch key {
	case locator.KeyEnter:
		k = input.Enter
	case locator.KeyEscape:
		k = input.Escape
	default:
		return fmt.Errorf("unsupported key %q", string(key))
	}
	return e.el.Context(ctx).Type(k)
}

func (e element) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e element) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}
