package kanbantest

import (
	"context"
	"fmt"
	"strings"

	"boardcheck/internal/locator"
)

type element struct {
	app     *App
	concept locator.Concept
	text    string
	ref     any
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.app.mu.Lock()
	defer e.app.mu.Unlock()
	if !e.attachedLocked() {
		return "", ErrDetached
	}
	return e.text, nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.app.mu.Lock()
	defer e.app.mu.Unlock()
	return e.attachedLocked(), nil
}

// attachedLocked reports whether the node behind a model-backed handle still exists
// where it was rendered.
func (e *element) attachedLocked() bool {
	a := e.app
	switch ref := e.ref.(type) {
	case *card:
		if e.concept == locator.MoveAction || e.concept == locator.CardDetailClose {
			return a.detail == ref
		}
		return a.listOf(ref) != nil
	case *list:
		return a.current != nil && a.findList(ref.name) == ref
	case *board:
		return !ref.deleted
	}
	return true
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a := e.app
	a.mu.Lock()
	if !e.attachedLocked() {
		a.mu.Unlock()
		return ErrDetached
	}
	a.clicks[e.concept]++
	msg, throws := a.throws[e.concept]
	sink := a.sink
	err := e.clickLocked()
	a.mu.Unlock()

	if throws && sink != nil {
		sink(msg)
	}
	return err
}

func (e *element) clickLocked() error {
	a := e.app
	switch e.concept {
	case locator.LoginLink:
		a.later(func() {
			a.url = a.opts.IdentityOrigin + "/login?continue=" + a.opts.Origin
			a.identity.stage = 0
		})
	case locator.IdentityContinue:
		a.later(func() {
			if a.identity.email != "" {
				a.identity.stage = 1
			}
		})
	case locator.IdentitySubmit:
		email, password := a.identity.email, a.identity.password
		a.later(func() {
			want, ok := a.opts.Users[email]
			if !ok || want != password {
				a.identity.password = ""
				return
			}
			a.user = strings.SplitN(email, "@", 2)[0]
			a.identity = identityForm{}
			a.url = a.boardsURL()
		})

	case locator.CreateMenu:
		a.later(func() { a.createMenu = !a.createMenu })
	case locator.CreateBoardOption:
		a.later(func() { a.createMenu, a.createPopover = false, true })
	case locator.CreateBoardSubmit:
		name := a.boardDraft
		a.later(func() {
			b := &board{id: a.nextID, name: name}
			a.nextID++
			a.boards = append(a.boards, b)
			a.resetOverlays()
			a.current = b
			a.url = a.boardURL(b)
		})
	case locator.BoardTile:
		b := e.ref.(*board)
		a.later(func() {
			a.resetOverlays()
			a.deletedNotice = false
			a.current = b
			a.url = a.boardURL(b)
		})

	case locator.AddListButton:
		a.later(func() { a.listComposer = true })
	case locator.AddCardButton:
		l := e.ref.(*list)
		a.later(func() { a.cardComposer, a.cardDraft = l, "" })
	case locator.CardsOfList, locator.CardInList:
		c := e.ref.(*card)
		a.later(func() { a.detail = c })

	case locator.MoveAction:
		a.later(func() { a.moveDialog, a.moveQuery, a.moveTarget = true, "", nil })
	case locator.MoveConfirm:
		c, target := a.detail, a.moveTarget
		a.later(func() {
			a.moveDialog = false
			if c == nil || target == nil {
				return
			}
			from := a.listOf(c)
			if from == nil || from == target {
				return
			}
			for i, x := range from.cards {
				if x == c {
					from.cards = append(from.cards[:i:i], from.cards[i+1:]...)
					break
				}
			}
			target.cards = append(target.cards, c)
		})
	case locator.CardDetailClose:
		a.later(func() { a.detail, a.moveDialog = nil, false })

	case locator.BoardMenu:
		a.later(func() { a.boardMenu = !a.boardMenu })
	case locator.CloseBoardOption:
		a.later(func() { a.closeConfirm = true })
	case locator.CloseBoardConfirm:
		b := a.current
		if b == nil {
			return ErrDetached
		}
		a.later(func() {
			b.closed = true
			a.closeConfirm, a.boardMenu = false, false
		})
	case locator.DeleteBoardOption:
		a.later(func() { a.deleteConfirm = true })
	case locator.DeleteBoardConfirm:
		b := a.current
		if b == nil {
			return ErrDetached
		}
		a.later(func() {
			b.deleted = true
			a.resetOverlays()
			a.current = nil
			a.url = a.boardsURL()
			a.deletedNotice = true
		})
	}
	return nil
}

func (e *element) Input(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a := e.app
	a.mu.Lock()
	defer a.mu.Unlock()
	switch e.concept {
	case locator.IdentityUsername:
		a.identity.email = text
	case locator.IdentityPassword:
		a.identity.password = text
	case locator.BoardTitleInput:
		a.boardDraft = text
	case locator.ListNameInput:
		a.listDraft = text
	case locator.CardComposerInput:
		a.cardDraft = text
	case locator.MoveDestination:
		a.moveQuery = text
	default:
		return fmt.Errorf("kanbantest: %s does not accept input", e.concept)
	}
	return nil
}

func (e *element) Press(ctx context.Context, key locator.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a := e.app
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case e.concept == locator.ListNameInput && key == locator.KeyEnter:
		name, b := a.listDraft, a.current
		a.listDraft = ""
		if name == "" || b == nil {
			return nil
		}
		a.later(func() { b.lists = append(b.lists, &list{name: name}) })
	case e.concept == locator.CardComposerInput && key == locator.KeyEnter:
		name, l := a.cardDraft, a.cardComposer
		a.cardDraft = ""
		if name == "" || l == nil {
			return nil
		}
		a.later(func() { l.cards = append(l.cards, &card{name: name}) })
	case e.concept == locator.MoveDestination && key == locator.KeyEnter:
		query := a.moveQuery
		a.later(func() {
			a.moveTarget = nil
			if a.current == nil {
				return
			}
			for _, l := range a.current.lists {
				if l.name == query {
					a.moveTarget = l
					return
				}
			}
			for _, l := range a.current.lists {
				if strings.HasPrefix(strings.ToLower(l.name), strings.ToLower(query)) {
					a.moveTarget = l
					return
				}
			}
		})
	case key == locator.KeyEscape:
		switch e.concept {
		case locator.ListNameInput:
			a.later(func() { a.listComposer, a.listDraft = false, "" })
		case locator.CardComposerInput:
			a.later(func() { a.cardComposer, a.cardDraft = nil, "" })
		}
	default:
		return fmt.Errorf("kanbantest: %s ignores key %s", e.concept, key)
	}
	return nil
}
