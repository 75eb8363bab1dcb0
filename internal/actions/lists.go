package actions

import (
	"context"
	"fmt"

	"boardcheck/internal/failure"
	"boardcheck/internal/fixture"
	"boardcheck/internal/locator"

	"go.uber.org/zap"
)

// CreateList adds one list to the open board.
func (c *Commands) CreateList(ctx context.Context, name string) error {
	return c.CreateLists(ctx, []string{name})
}

// CreateLists adds names to the open board in order. The list composer stays open
// after each submission; each list must render before the next name is typed.
func (c *Commands) CreateLists(ctx context.Context, names []string) (err error) {
	defer c.observe(ctx, "create lists", &err)

	u := c.ui()
	for _, name := range names {
		existing, err := c.catalog.FindAll(ctx, locator.ListContainer, name)
		if err != nil {
			return failure.CreationFailed("list", name, err)
		}
		if !c.catalog.Present(ctx, locator.ListNameInput) {
			if err := u.click(ctx, locator.AddListButton); err != nil {
				return failure.CreationFailed("list", name, err)
			}
		}
		if err := u.submit(ctx, locator.ListNameInput, name); err != nil {
			return failure.CreationFailed("list", name, err)
		}
		want := len(existing) + 1
		if _, err := c.catalog.TextsWhere(ctx, locator.ListContainer, func(t []string) bool {
			return len(t) == want
		}, name); err != nil {
			return failure.CreationFailed("list", name, err)
		}
		c.logger.Debug("list created", zap.String("list", name))
	}
	if err := u.dismiss(ctx, locator.ListNameInput); err != nil {
		return fmt.Errorf("close list composer: %w", err)
	}
	return nil
}

// CreateCard adds one card at the bottom of listName.
func (c *Commands) CreateCard(ctx context.Context, listName, cardName string) error {
	return c.CreateCards(ctx, []fixture.Card{{ListName: listName, CardName: cardName}})
}

// CreateCards adds cards in order. Consecutive cards for the same list share one
// opening of that list's composer. Each card must render at the bottom of its list
// before the next is typed.
func (c *Commands) CreateCards(ctx context.Context, cards []fixture.Card) (err error) {
	defer c.observe(ctx, "create cards", &err)

	u := c.ui()
	for _, g := range fixture.GroupByList(cards) {
		if err := u.click(ctx, locator.AddCardButton, g.ListName); err != nil {
			return failure.CreationFailed("card", g.Cards[0], fmt.Errorf("open composer of %q: %w", g.ListName, err))
		}
		// The button hides once the composer has moved into this list.
		if err := c.catalog.WaitAbsent(ctx, locator.AddCardButton, g.ListName); err != nil {
			return failure.CreationFailed("card", g.Cards[0], fmt.Errorf("open composer of %q: %w", g.ListName, err))
		}
		for _, name := range g.Cards {
			before, err := c.catalog.Texts(ctx, locator.CardsOfList, g.ListName)
			if err != nil {
				return failure.CreationFailed("card", name, err)
			}
			if err := u.submit(ctx, locator.CardComposerInput, name); err != nil {
				return failure.CreationFailed("card", name, err)
			}
			want := len(before) + 1
			if _, err := c.catalog.TextsWhere(ctx, locator.CardsOfList, func(t []string) bool {
				return len(t) == want && t[len(t)-1] == name
			}, g.ListName); err != nil {
				return failure.CreationFailed("card", name, err)
			}
			c.logger.Debug("card created", zap.String("list", g.ListName), zap.String("card", name))
		}
	}
	if err := u.dismiss(ctx, locator.CardComposerInput); err != nil {
		return fmt.Errorf("close card composer: %w", err)
	}
	return nil
}

// CardNamesOfList returns the names of the cards rendered under listName, top to
// bottom. It does not interact with the page.
func (c *Commands) CardNamesOfList(ctx context.Context, listName string) ([]string, error) {
	names, err := c.catalog.Texts(ctx, locator.CardsOfList, listName)
	if err != nil {
		return nil, fmt.Errorf("card names of %q: %w", listName, err)
	}
	return names, nil
}
