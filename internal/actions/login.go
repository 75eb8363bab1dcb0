package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"boardcheck/internal/failure"
	"boardcheck/internal/fixture"
	"boardcheck/internal/locator"
	"boardcheck/internal/wait"

	"go.uber.org/zap"
)

// Login authenticates in two phases. Phase one runs on the primary origin and
// triggers the redirect to the identity provider. Phase two runs confined to the
// identity origin and receives the credentials by value. Login succeeds once the
// browser is back on the primary origin at the authenticated route.
func (c *Commands) Login(ctx context.Context, creds fixture.Credentials) (err error) {
	defer c.observe(ctx, "login", &err)

	if creds.Empty() {
		return failure.AuthenticationFailed(failure.PhaseCredentials, errors.New("email or password is empty"))
	}
	if err := c.session.begin(); err != nil {
		return failure.AuthenticationFailed(failure.PhaseStart, err)
	}
	if err := c.login(ctx, creds); err != nil {
		c.session.abort()
		return err
	}
	c.session.complete(creds.Email)
	c.logger.Info("authenticated", zap.String("user", creds.Email))
	return nil
}

func (c *Commands) login(ctx context.Context, creds fixture.Credentials) error {
	if err := c.driver.Navigate(ctx, c.opts.BaseURL); err != nil {
		return failure.AuthenticationFailed(failure.PhaseNavigate, err)
	}

	primary := c.ui()
	primary.cat = c.catalog.With(NewOriginScope(c.driver, c.opts.BaseURL))
	if err := primary.click(ctx, locator.LoginLink); err != nil {
		return failure.AuthenticationFailed(failure.PhaseHandOff, err)
	}

	identity := NewOriginScope(c.driver, c.opts.IdentityOrigin)
	err := InOrigin(ctx, c.catalog, identity, creds,
		func(ctx context.Context, cat *locator.Catalog, creds fixture.Credentials) error {
			u := c.ui()
			u.cat = cat
			return enterIdentity(ctx, u, creds)
		})
	if err != nil {
		return failure.AuthenticationFailed(failure.PhaseIdentity, err)
	}

	if err := c.awaitAuthenticatedRoute(ctx); err != nil {
		return failure.AuthenticationFailed(failure.PhaseRoute, err)
	}
	return nil
}

func enterIdentity(ctx context.Context, u ui, creds fixture.Credentials) error {
	if err := u.fill(ctx, locator.IdentityUsername, creds.Email); err != nil {
		return err
	}
	if err := u.click(ctx, locator.IdentityContinue); err != nil {
		return err
	}
	if err := u.fill(ctx, locator.IdentityPassword, creds.Password); err != nil {
		return err
	}
	return u.click(ctx, locator.IdentitySubmit)
}

func (c *Commands) awaitAuthenticatedRoute(ctx context.Context) error {
	policy := c.catalog.Policy()
	if c.opts.LoginTimeout > 0 {
		policy = policy.WithTimeout(c.opts.LoginTimeout)
	}
	var last string
	err := wait.Condition(ctx, policy, func(ctx context.Context) (bool, error) {
		u, err := c.driver.CurrentURL(ctx)
		if err != nil {
			return false, err
		}
		last = u
		return SameOrigin(u, c.opts.BaseURL) && strings.Contains(u, c.opts.AuthenticatedRoute), nil
	})
	if err != nil {
		return fmt.Errorf("route %q on %s not reached, page at %q: %w", c.opts.AuthenticatedRoute, c.opts.BaseURL, last, err)
	}
	return nil
}
