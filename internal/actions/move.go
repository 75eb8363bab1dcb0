package actions

import (
	"context"
	"errors"
	"fmt"

	"boardcheck/internal/failure"
	"boardcheck/internal/fixture"
	"boardcheck/internal/locator"

	"go.uber.org/zap"
)

// MoveCard moves m.CardName from m.FromList to m.ToList through the card's detail
// view. Every step waits for its own effect before the next starts, and a stalled
// step is reported as MoveFailed naming that step. The move is complete only once
// the source list shows one card fewer and the destination one more.
func (c *Commands) MoveCard(ctx context.Context, m fixture.Move) (err error) {
	defer c.observe(ctx, "move card", &err)

	fail := func(step string, err error) error {
		return failure.MoveFailed(step, m.CardName, fmt.Errorf("%q -> %q: %w", m.FromList, m.ToList, err))
	}
	if m.FromList == m.ToList {
		return fail(failure.StepSelectDestination, errors.New("source and destination are the same list"))
	}
	u := c.ui()

	// locate card
	if _, err := c.catalog.Find(ctx, locator.CardInList, m.FromList, m.CardName); err != nil {
		return fail(failure.StepLocateCard, err)
	}
	src, err := c.catalog.Texts(ctx, locator.CardsOfList, m.FromList)
	if err != nil {
		return fail(failure.StepLocateCard, err)
	}
	dst, err := c.catalog.Texts(ctx, locator.CardsOfList, m.ToList)
	if err != nil {
		return fail(failure.StepLocateCard, err)
	}

	// open detail
	if err := u.click(ctx, locator.CardInList, m.FromList, m.CardName); err != nil {
		return fail(failure.StepOpenDetail, err)
	}
	if _, err := c.catalog.Find(ctx, locator.MoveAction); err != nil {
		return fail(failure.StepOpenDetail, err)
	}

	// open move dialog
	if err := u.click(ctx, locator.MoveAction); err != nil {
		return fail(failure.StepOpenMoveDialog, err)
	}
	if _, err := c.catalog.Find(ctx, locator.MoveDestination); err != nil {
		return fail(failure.StepOpenMoveDialog, err)
	}

	// select destination
	if err := u.submit(ctx, locator.MoveDestination, m.ToList); err != nil {
		return fail(failure.StepSelectDestination, err)
	}
	if _, err := c.catalog.TextsWhere(ctx, locator.MoveDestination, func(t []string) bool {
		return len(t) > 0 && t[0] == m.ToList
	}); err != nil {
		return fail(failure.StepSelectDestination, err)
	}

	// confirm
	if err := u.click(ctx, locator.MoveConfirm); err != nil {
		return fail(failure.StepConfirm, err)
	}
	if err := c.catalog.WaitAbsent(ctx, locator.MoveConfirm); err != nil {
		return fail(failure.StepConfirm, err)
	}

	// close detail
	if err := u.click(ctx, locator.CardDetailClose); err != nil {
		return fail(failure.StepCloseDetail, err)
	}
	if err := c.catalog.WaitAbsent(ctx, locator.MoveAction); err != nil {
		return fail(failure.StepCloseDetail, err)
	}

	// settle
	wantSrc, wantDst := count(src, m.CardName)-1, count(dst, m.CardName)+1
	if _, err := c.catalog.TextsWhere(ctx, locator.CardsOfList, func(t []string) bool {
		return len(t) == len(src)-1 && count(t, m.CardName) == wantSrc
	}, m.FromList); err != nil {
		return fail(failure.StepSettle, err)
	}
	if _, err := c.catalog.TextsWhere(ctx, locator.CardsOfList, func(t []string) bool {
		return len(t) == len(dst)+1 && count(t, m.CardName) == wantDst
	}, m.ToList); err != nil {
		return fail(failure.StepSettle, err)
	}

	c.logger.Info("card moved",
		zap.String("card", m.CardName),
		zap.String("from", m.FromList),
		zap.String("to", m.ToList))
	return nil
}
