package scenario

import (
	"context"
	"fmt"

	"boardcheck/internal/actions"
	"boardcheck/internal/failure"
	"boardcheck/internal/fixture"
	"boardcheck/internal/locator"
)

// Scenario names, in suite order.
const (
	NameAuthenticate = "authenticate"
	NameCreateBoard  = "create board"
	NameCreateLists  = "create lists"
	NameCreateCards  = "create cards"
	NameMoveCards    = "move cards"
	NameDeleteBoard  = "delete board"
)

// DefaultSuite returns the six workflows in the order they depend on each other.
func DefaultSuite() []Scenario {
	return []Scenario{
		Define(NameAuthenticate, authenticate),
		Define(NameCreateBoard, createBoard),
		Define(NameCreateLists, createLists),
		Define(NameCreateCards, createCards),
		Define(NameMoveCards, moveCards),
		Define(NameDeleteBoard, deleteBoard),
	}
}

func authenticate(ctx context.Context, env *Env, state State) (State, error) {
	var creds fixture.Credentials
	if err := env.Step(ctx, "load credentials", func(ctx context.Context) (err error) {
		creds, err = env.Fixtures.Credentials(ctx)
		return err
	}); err != nil {
		return state, err
	}
	if err := env.Step(ctx, "log in", func(ctx context.Context) error {
		return env.Commands.Login(ctx, creds)
	}); err != nil {
		return state, err
	}
	err := env.Step(ctx, "assert authenticated", func(context.Context) error {
		if st := env.Commands.Session().Status(); st != actions.Authenticated {
			return failure.AssertionFailed("session status", actions.Authenticated.String(), st.String())
		}
		return nil
	})
	state.Authenticated = err == nil
	return state, err
}

func createBoard(ctx context.Context, env *Env, state State) (State, error) {
	if err := state.requireBoard(Absent, Deleted); err != nil {
		return state, err
	}
	name := state.Board.Name
	if err := env.Step(ctx, "create board", func(ctx context.Context) error {
		b, err := env.Commands.CreateBoard(ctx, name)
		if err != nil {
			return err
		}
		state.Board = BoardState{Name: b.Name, URL: b.URL, Lifecycle: Open}
		state.Lists, state.Cards = nil, map[string][]string{}
		return nil
	}); err != nil {
		return state, err
	}
	return state, env.Step(ctx, "assert board rendered", func(ctx context.Context) error {
		return assertRendered(ctx, env.Commands.Catalog(), locator.BoardHeader, name)
	})
}

// openBoard re-enters the run's board by name before board-scoped work.
func openBoard(ctx context.Context, env *Env, state *State) error {
	return env.Step(ctx, "open board", func(ctx context.Context) error {
		b, err := env.Commands.OpenBoard(ctx, state.Board.Name)
		if err != nil {
			return err
		}
		state.Board.URL = b.URL
		return nil
	})
}

func createLists(ctx context.Context, env *Env, state State) (State, error) {
	if err := state.requireBoard(Open); err != nil {
		return state, err
	}
	var names []string
	if err := env.Step(ctx, "load lists", func(ctx context.Context) (err error) {
		names, err = env.Fixtures.Lists(ctx)
		return err
	}); err != nil {
		return state, err
	}
	if err := openBoard(ctx, env, &state); err != nil {
		return state, err
	}
	if err := env.Step(ctx, "create lists", func(ctx context.Context) error {
		return env.Commands.CreateLists(ctx, names)
	}); err != nil {
		return state, err
	}
	state.Lists = append(state.Lists, names...)
	return state, env.Step(ctx, "assert lists rendered", func(ctx context.Context) error {
		for _, name := range names {
			if err := assertRendered(ctx, env.Commands.Catalog(), locator.ListContainer, name); err != nil {
				return err
			}
		}
		return nil
	})
}

func createCards(ctx context.Context, env *Env, state State) (State, error) {
	if err := state.requireBoard(Open); err != nil {
		return state, err
	}
	var cards []fixture.Card
	if err := env.Step(ctx, "load cards", func(ctx context.Context) (err error) {
		cards, err = env.Fixtures.Cards(ctx)
		return err
	}); err != nil {
		return state, err
	}
	for _, c := range cards {
		if !state.HasList(c.ListName) {
			return state, fmt.Errorf("%w: list %q was not created", ErrPrecondition, c.ListName)
		}
	}
	if err := openBoard(ctx, env, &state); err != nil {
		return state, err
	}
	if err := env.Step(ctx, "create cards", func(ctx context.Context) error {
		return env.Commands.CreateCards(ctx, cards)
	}); err != nil {
		return state, err
	}
	for _, c := range cards {
		state.addCard(c.ListName, c.CardName)
	}

	byList := map[string][]string{}
	var order []string
	for _, c := range cards {
		if _, ok := byList[c.ListName]; !ok {
			order = append(order, c.ListName)
		}
		byList[c.ListName] = append(byList[c.ListName], c.CardName)
	}
	return state, env.Step(ctx, "assert cards rendered", func(ctx context.Context) error {
		for _, list := range order {
			got, err := env.Commands.CardNamesOfList(ctx, list)
			if err != nil {
				return err
			}
			subject := fmt.Sprintf("cards of %q", list)
			if err := assertIncludes(subject, got, byList[list]...); err != nil {
				return err
			}
			if err := assertInOrder(subject, got, byList[list]); err != nil {
				return err
			}
		}
		return nil
	})
}

func moveCards(ctx context.Context, env *Env, state State) (State, error) {
	if err := state.requireBoard(Open); err != nil {
		return state, err
	}
	var moves []fixture.Move
	if err := env.Step(ctx, "load moves", func(ctx context.Context) (err error) {
		moves, err = env.Fixtures.Moves(ctx)
		return err
	}); err != nil {
		return state, err
	}
	for _, m := range moves {
		for _, list := range []string{m.FromList, m.ToList} {
			if !state.HasList(list) {
				return state, fmt.Errorf("%w: list %q was not created", ErrPrecondition, list)
			}
		}
	}
	if err := openBoard(ctx, env, &state); err != nil {
		return state, err
	}
	for _, m := range moves {
		if err := moveOne(ctx, env, m); err != nil {
			return state, err
		}
		state.moveCard(m.FromList, m.CardName, m.ToList)
	}
	return state, nil
}

// moveOne moves a card and checks the read-back of both lists against what they
// held before the move.
func moveOne(ctx context.Context, env *Env, m fixture.Move) error {
	var before struct{ src, dst []string }
	if err := env.Step(ctx, "read lists before "+m.String(), func(ctx context.Context) (err error) {
		if before.src, err = env.Commands.CardNamesOfList(ctx, m.FromList); err != nil {
			return err
		}
		before.dst, err = env.Commands.CardNamesOfList(ctx, m.ToList)
		return err
	}); err != nil {
		return err
	}
	if err := env.Step(ctx, "move "+m.String(), func(ctx context.Context) error {
		return env.Commands.MoveCard(ctx, m)
	}); err != nil {
		return err
	}
	return env.Step(ctx, "assert moved "+m.String(), func(ctx context.Context) error {
		src, err := env.Commands.CardNamesOfList(ctx, m.FromList)
		if err != nil {
			return err
		}
		dst, err := env.Commands.CardNamesOfList(ctx, m.ToList)
		if err != nil {
			return err
		}
		srcSubject, dstSubject := fmt.Sprintf("cards of %q", m.FromList), fmt.Sprintf("cards of %q", m.ToList)
		if left := occurrences(before.src, m.CardName) - 1; left == 0 {
			if err := assertExcludes(srcSubject, src, m.CardName); err != nil {
				return err
			}
		} else if err := assertCount(srcSubject, src, m.CardName, left); err != nil {
			return err
		}
		if err := assertIncludes(dstSubject, dst, m.CardName); err != nil {
			return err
		}
		return assertCount(dstSubject, dst, m.CardName, occurrences(before.dst, m.CardName)+1)
	})
}

func deleteBoard(ctx context.Context, env *Env, state State) (State, error) {
	if err := state.requireBoard(Open, Closed); err != nil {
		return state, err
	}
	name := state.Board.Name
	if state.Board.Lifecycle == Open {
		if err := openBoard(ctx, env, &state); err != nil {
			return state, err
		}
		if err := env.Step(ctx, "close board", func(ctx context.Context) error {
			return env.Commands.CloseBoard(ctx, name)
		}); err != nil {
			return state, err
		}
		state.Board.Lifecycle = Closed
	}
	if err := env.Step(ctx, "delete board", func(ctx context.Context) error {
		return env.Commands.DeleteBoard(ctx, name)
	}); err != nil {
		return state, err
	}
	state.Board.Lifecycle = Deleted
	return state, env.Step(ctx, "assert deletion notice", func(ctx context.Context) error {
		return assertRendered(ctx, env.Commands.Catalog(), locator.BoardDeletedNotice)
	})
}
