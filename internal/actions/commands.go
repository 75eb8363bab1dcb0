// Package actions implements the user-level commands the scenarios are written in:
// log in, create boards, lists and cards, move a card, read a list back, close and
// delete a board. Each command is a sequence of catalog lookups, and every step
// waits for the previous step's effect to render before it acts.
package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"boardcheck/internal/locator"
	"boardcheck/internal/wait"

	"go.uber.org/zap"
)

// Options configures the command layer.
type Options struct {
	// BaseURL is the primary origin of the application.
	BaseURL string
	// IdentityOrigin serves the second login phase.
	IdentityOrigin string
	// AuthenticatedRoute is a fragment of every post-login URL.
	AuthenticatedRoute string
	// Policy bounds every UI wait.
	Policy wait.Policy
	// LoginTimeout overrides the policy timeout for the post-login redirect.
	LoginTimeout time.Duration
	// Attempts is how many times an interaction is retried when acting on a
	// resolved element fails.
	Attempts int
	// RetryPause separates interaction attempts.
	RetryPause time.Duration
	// ArtifactsDir receives a screenshot for every failed command when set.
	ArtifactsDir string
}

// DefaultOptions returns options with the route, waits and retries filled in.
func DefaultOptions() Options {
	return Options{
		AuthenticatedRoute: "/boards",
		Policy:             wait.DefaultPolicy,
		Attempts:           3,
		RetryPause:         time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.AuthenticatedRoute == "" {
		o.AuthenticatedRoute = d.AuthenticatedRoute
	}
	if o.Policy == (wait.Policy{}) {
		o.Policy = d.Policy
	}
	if o.Attempts <= 0 {
		o.Attempts = d.Attempts
	}
	if o.RetryPause < 0 {
		o.RetryPause = 0
	}
	return o
}

// Board identifies a board the commands created or opened.
type Board struct {
	Name string
	URL  string
}

// Commands is the action command layer bound to one driver and one session.
type Commands struct {
	driver  Driver
	catalog *locator.Catalog
	opts    Options
	session *Session
	logger  *zap.Logger

	mu        sync.Mutex
	artifacts []string
}

// New returns commands acting on d.
func New(d Driver, opts Options, logger *zap.Logger) *Commands {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &Commands{
		driver:  d,
		catalog: locator.NewCatalog(d, opts.Policy),
		opts:    opts,
		session: &Session{},
		logger:  logger,
	}
}

// Catalog is the catalog the commands resolve through.
func (c *Commands) Catalog() *locator.Catalog { return c.catalog }

// Session is the authentication state mutated by Login.
func (c *Commands) Session() *Session { return c.session }

// Driver is the underlying page.
func (c *Commands) Driver() Driver { return c.driver }

// Options returns the effective options.
func (c *Commands) Options() Options { return c.opts }

// TakeArtifacts returns the files written since the last call and forgets them.
func (c *Commands) TakeArtifacts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.artifacts
	c.artifacts = nil
	return out
}

func (c *Commands) ui() ui {
	return ui{cat: c.catalog, attempts: c.opts.Attempts, pause: c.opts.RetryPause}
}

// observe logs the outcome of a command and captures the page when it failed.
func (c *Commands) observe(ctx context.Context, action string, errp *error) {
	if *errp == nil {
		c.logger.Debug("action completed", zap.String("action", action))
		return
	}
	c.logger.Warn("action failed", zap.String("action", action), zap.Error(*errp))
	c.capture(ctx, action)
}

func (c *Commands) capture(ctx context.Context, action string) {
	capturer, ok := c.driver.(Capturer)
	if !ok || c.opts.ArtifactsDir == "" {
		return
	}
	// The command's own context may be the one that expired.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	data, err := capturer.Screenshot(cctx)
	if err != nil {
		c.logger.Warn("failure screenshot not captured", zap.String("action", action), zap.Error(err))
		return
	}
	name := fmt.Sprintf("error_screenshot_%s_%s.png",
		strings.ReplaceAll(action, " ", "_"), time.Now().Format("20060102_150405.000"))
	path := filepath.Join(c.opts.ArtifactsDir, name)
	if err := os.MkdirAll(c.opts.ArtifactsDir, 0o755); err != nil {
		c.logger.Warn("artifacts dir not writable", zap.String("dir", c.opts.ArtifactsDir), zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.logger.Warn("failure screenshot not written", zap.String("path", path), zap.Error(err))
		return
	}
	c.mu.Lock()
	c.artifacts = append(c.artifacts, path)
	c.mu.Unlock()
	c.logger.Info("failure screenshot saved", zap.String("action", action), zap.String("path", path))
}

// ui performs element interactions through a catalog. Lookups wait under the
// catalog policy; acting on a found element is retried a fixed number of times.
type ui struct {
	cat      *locator.Catalog
	attempts int
	pause    time.Duration
}

func (u ui) interact(ctx context.Context, concept locator.Concept, args []string, act func(context.Context, locator.Element) error) error {
	var err error
	for i := 0; i < u.attempts; i++ {
		if i > 0 {
			if serr := sleep(ctx, u.pause); serr != nil {
				return serr
			}
		}
		var el locator.Element
		el, err = u.cat.Find(ctx, concept, args...)
		if err != nil {
			return err
		}
		if err = act(ctx, el); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", concept, u.attempts, err)
}

func (u ui) click(ctx context.Context, concept locator.Concept, args ...string) error {
	return u.interact(ctx, concept, args, func(ctx context.Context, el locator.Element) error {
		return el.Click(ctx)
	})
}

func (u ui) fill(ctx context.Context, concept locator.Concept, text string, args ...string) error {
	return u.interact(ctx, concept, args, func(ctx context.Context, el locator.Element) error {
		return el.Input(ctx, text)
	})
}

// submit types text and presses Enter.
func (u ui) submit(ctx context.Context, concept locator.Concept, text string, args ...string) error {
	return u.interact(ctx, concept, args, func(ctx context.Context, el locator.Element) error {
		if err := el.Input(ctx, text); err != nil {
			return err
		}
		return el.Press(ctx, locator.KeyEnter)
	})
}

// dismiss presses Escape on concept if it is currently rendered.
func (u ui) dismiss(ctx context.Context, concept locator.Concept, args ...string) error {
	if !u.cat.Present(ctx, concept, args...) {
		return nil
	}
	return u.interact(ctx, concept, args, func(ctx context.Context, el locator.Element) error {
		return el.Press(ctx, locator.KeyEscape)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func count(names []string, name string) int {
	n := 0
	for _, s := range names {
		if s == name {
			n++
		}
	}
	return n
}
