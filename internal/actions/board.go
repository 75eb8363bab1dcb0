package actions

import (
	"context"
	"fmt"

	"boardcheck/internal/failure"
	"boardcheck/internal/locator"

	"go.uber.org/zap"
)

// CreateBoard opens the creation popover, submits name and waits for the new
// board to render.
func (c *Commands) CreateBoard(ctx context.Context, name string) (b Board, err error) {
	defer c.observe(ctx, "create board", &err)

	u := c.ui()
	if err := u.click(ctx, locator.CreateMenu); err != nil {
		return Board{}, failure.CreationFailed("board", name, err)
	}
	if err := u.click(ctx, locator.CreateBoardOption); err != nil {
		return Board{}, failure.CreationFailed("board", name, err)
	}
	if err := u.fill(ctx, locator.BoardTitleInput, name); err != nil {
		return Board{}, failure.CreationFailed("board", name, err)
	}
	if err := u.click(ctx, locator.CreateBoardSubmit); err != nil {
		return Board{}, failure.CreationFailed("board", name, err)
	}
	if _, err := c.catalog.Find(ctx, locator.BoardHeader, name); err != nil {
		return Board{}, failure.CreationFailed("board", name, err)
	}
	url, err := c.driver.CurrentURL(ctx)
	if err != nil {
		return Board{}, failure.CreationFailed("board", name, err)
	}
	c.logger.Info("board created", zap.String("board", name), zap.String("url", url))
	return Board{Name: name, URL: url}, nil
}

// OpenBoard makes name the rendered board, starting from the boards page unless
// it is already open.
func (c *Commands) OpenBoard(ctx context.Context, name string) (b Board, err error) {
	defer c.observe(ctx, "open board", &err)

	if !c.catalog.Present(ctx, locator.BoardHeader, name) {
		if err := c.driver.Navigate(ctx, c.opts.BaseURL); err != nil {
			return Board{}, fmt.Errorf("open board %q: %w", name, err)
		}
		if err := c.ui().click(ctx, locator.BoardTile, name); err != nil {
			return Board{}, fmt.Errorf("open board %q: %w", name, err)
		}
		if _, err := c.catalog.Find(ctx, locator.BoardHeader, name); err != nil {
			return Board{}, fmt.Errorf("open board %q: %w", name, err)
		}
	}
	url, err := c.driver.CurrentURL(ctx)
	if err != nil {
		return Board{}, fmt.Errorf("open board %q: %w", name, err)
	}
	return Board{Name: name, URL: url}, nil
}

// CloseBoard moves the open board name to closed through the board menu and its
// confirmation dialog. A board that already shows the closed banner is left as is.
func (c *Commands) CloseBoard(ctx context.Context, name string) (err error) {
	defer c.observe(ctx, "close board", &err)

	fail := func(step string, err error) error {
		return failure.TransitionFailed("close board", name, step, err)
	}
	if _, err := c.catalog.Find(ctx, locator.BoardHeader, name); err != nil {
		return fail(failure.StepLocateBoard, err)
	}
	if c.catalog.Present(ctx, locator.BoardClosedBanner) {
		c.logger.Debug("board already closed", zap.String("board", name))
		return nil
	}

	u := c.ui()
	if err := u.click(ctx, locator.BoardMenu); err != nil {
		return fail(failure.StepOpenMenu, err)
	}
	if err := u.click(ctx, locator.CloseBoardOption); err != nil {
		return fail(failure.StepSelectClose, err)
	}
	if err := u.click(ctx, locator.CloseBoardConfirm); err != nil {
		return fail(failure.StepConfirmClose, err)
	}
	if _, err := c.catalog.Find(ctx, locator.BoardClosedBanner); err != nil {
		return fail(failure.StepAwaitClosed, err)
	}
	c.logger.Info("board closed", zap.String("board", name))
	return nil
}

// DeleteBoard permanently deletes the closed board name and waits for the
// deletion notice.
func (c *Commands) DeleteBoard(ctx context.Context, name string) (err error) {
	defer c.observe(ctx, "delete board", &err)

	fail := func(step string, err error) error {
		return failure.TransitionFailed("delete board", name, step, err)
	}
	if _, err := c.catalog.Find(ctx, locator.BoardHeader, name); err != nil {
		return fail(failure.StepLocateBoard, err)
	}
	if _, err := c.catalog.Find(ctx, locator.BoardClosedBanner); err != nil {
		return fail(failure.StepRequireClosed, err)
	}

	u := c.ui()
	if err := u.click(ctx, locator.DeleteBoardOption); err != nil {
		return fail(failure.StepSelectDelete, err)
	}
	if err := u.click(ctx, locator.DeleteBoardConfirm); err != nil {
		return fail(failure.StepConfirmDelete, err)
	}
	if _, err := c.catalog.Find(ctx, locator.BoardDeletedNotice); err != nil {
		return fail(failure.StepAwaitDeleted, err)
	}
	c.logger.Info("board deleted", zap.String("board", name))
	return nil
}
