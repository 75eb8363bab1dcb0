// Package kanbantest is an in-memory Kanban application that satisfies the same
// driver contract as a real browser page. State changes triggered by clicks and key
// presses become visible only after a configurable render lag, and individual
// concepts can be stalled or made to throw, so the command layer's polling and
// failure paths can be exercised without a browser.
package kanbantest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"boardcheck/internal/locator"
)

const (
	DefaultOrigin         = "https://kanban.test"
	DefaultIdentityOrigin = "https://id.kanban.test"
)

// ErrDetached is returned when an element handle outlived the node it pointed at.
var ErrDetached = errors.New("element is detached from the page")

// Options configures an App.
type Options struct {
	Origin         string
	IdentityOrigin string
	// Lag delays every state change caused by a click or key press.
	Lag time.Duration
	// Users maps e-mail to password.
	Users map[string]string
}

type card struct {
	name string
}

type list struct {
	name  string
	cards []*card
}

type board struct {
	id      int
	name    string
	lists   []*list
	closed  bool
	deleted bool
}

type identityForm struct {
	email    string
	password string
	stage    int // 0 username, 1 password
}

type pending struct {
	due time.Time
	fn  func()
}

// App is the fake application. All methods are safe for concurrent use.
type App struct {
	opts Options

	mu      sync.Mutex
	queue   []pending
	stalled map[locator.Concept]bool
	throws  map[locator.Concept]string
	clicks  map[locator.Concept]int
	sink    func(string)

	url      string
	user     string
	boards   []*board
	nextID   int
	current  *board
	identity identityForm

	createMenu     bool
	createPopover  bool
	boardDraft     string
	listComposer   bool
	listDraft      string
	cardComposer   *list
	cardDraft      string
	detail         *card
	moveDialog     bool
	moveQuery      string
	moveTarget     *list
	boardMenu      bool
	closeConfirm   bool
	deleteConfirm  bool
	deletedNotice  bool
	navigateErrors map[string]error
}

// New returns an App with no boards and nobody logged in.
func New(opts Options) *App {
	if opts.Origin == "" {
		opts.Origin = DefaultOrigin
	}
	if opts.IdentityOrigin == "" {
		opts.IdentityOrigin = DefaultIdentityOrigin
	}
	if opts.Users == nil {
		opts.Users = map[string]string{}
	}
	return &App{
		opts:           opts,
		stalled:        map[locator.Concept]bool{},
		throws:         map[locator.Concept]string{},
		clicks:         map[locator.Concept]int{},
		navigateErrors: map[string]error{},
		url:            "about:blank",
		nextID:         1,
	}
}

// BaseURL is the primary origin.
func (a *App) BaseURL() string { return a.opts.Origin }

// IdentityOrigin is the identity provider origin.
func (a *App) IdentityOrigin() string { return a.opts.IdentityOrigin }

// Stall makes a concept never render until Unstall is called.
func (a *App) Stall(c locator.Concept) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stalled[c] = true
}

// Unstall reverses Stall.
func (a *App) Unstall(c locator.Concept) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.stalled, c)
}

// ThrowOnClick emits message as an uncaught application error whenever an element
// of concept c is clicked.
func (a *App) ThrowOnClick(c locator.Concept, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.throws[c] = message
}

// Throw emits message as an uncaught application error now.
func (a *App) Throw(message string) {
	a.mu.Lock()
	sink := a.sink
	a.mu.Unlock()
	if sink != nil {
		sink(message)
	}
}

// SetExceptionSink receives uncaught application errors.
func (a *App) SetExceptionSink(sink func(message string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sink = sink
}

// FailNavigation makes Navigate to rawURL return err.
func (a *App) FailNavigation(rawURL string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.navigateErrors[rawURL] = err
}

// Clicks returns how many times an element of concept c was clicked.
func (a *App) Clicks(c locator.Concept) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clicks[c]
}

// Settle applies every pending state change immediately.
func (a *App) Settle() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.queue {
		p.fn()
	}
	a.queue = nil
}

// BoardSnapshot is a read-only view of one board's model.
type BoardSnapshot struct {
	Name    string
	Closed  bool
	Deleted bool
	Lists   []ListSnapshot
}

// ListSnapshot is a read-only view of one list.
type ListSnapshot struct {
	Name  string
	Cards []string
}

// Board returns the model of the most recently created board called name,
// regardless of what is rendered.
func (a *App) Board(name string) (BoardSnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.boards) - 1; i >= 0; i-- {
		b := a.boards[i]
		if b.name != name {
			continue
		}
		snap := BoardSnapshot{Name: b.name, Closed: b.closed, Deleted: b.deleted}
		for _, l := range b.lists {
			ls := ListSnapshot{Name: l.name, Cards: []string{}}
			for _, c := range l.cards {
				ls.Cards = append(ls.Cards, c.name)
			}
			snap.Lists = append(snap.Lists, ls)
		}
		return snap, true
	}
	return BoardSnapshot{}, false
}

// later schedules a state change after the render lag. Caller holds mu.
func (a *App) later(fn func()) {
	a.queue = append(a.queue, pending{due: time.Now().Add(a.opts.Lag), fn: fn})
}

// flush applies due state changes in order. Caller holds mu.
func (a *App) flush() {
	now := time.Now()
	n := 0
	for n < len(a.queue) && !a.queue[n].due.After(now) {
		a.queue[n].fn()
		n++
	}
	a.queue = a.queue[n:]
}

func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func (a *App) onPrimary() bool  { return origin(a.url) == a.opts.Origin }
func (a *App) onIdentity() bool { return origin(a.url) == a.opts.IdentityOrigin }

func (a *App) path() string {
	u, err := url.Parse(a.url)
	if err != nil {
		return ""
	}
	return u.Path
}

func (a *App) onBoardsPage() bool {
	return a.onPrimary() && a.user != "" && strings.HasSuffix(a.path(), "/boards")
}

func (a *App) boardsURL() string {
	return fmt.Sprintf("%s/u/%s/boards", a.opts.Origin, a.user)
}

func (a *App) boardURL(b *board) string {
	return fmt.Sprintf("%s/b/%d/%s", a.opts.Origin, b.id, strings.ReplaceAll(strings.ToLower(b.name), " ", "-"))
}

func (a *App) resetOverlays() {
	a.createMenu, a.createPopover, a.boardDraft = false, false, ""
	a.listComposer, a.listDraft = false, ""
	a.cardComposer, a.cardDraft = nil, ""
	a.detail, a.moveDialog, a.moveQuery, a.moveTarget = nil, false, "", nil
	a.boardMenu, a.closeConfirm, a.deleteConfirm = false, false, false
}

// Navigate loads rawURL. Logged-in users landing on the primary root are sent to
// their boards page; board URLs open the board they name.
func (a *App) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.navigateErrors[rawURL]; err != nil {
		return err
	}
	a.queue = nil
	a.resetOverlays()
	a.deletedNotice = false
	a.current = nil
	a.url = rawURL

	if !a.onPrimary() {
		return nil
	}
	p := a.path()
	switch {
	case a.user != "" && (p == "" || p == "/" || strings.HasSuffix(p, "/boards")):
		a.url = a.boardsURL()
	case strings.HasPrefix(p, "/b/"):
		var id int
		if _, err := fmt.Sscanf(p, "/b/%d", &id); err == nil {
			for _, b := range a.boards {
				if b.id == id && !b.deleted && a.user != "" {
					a.current = b
				}
			}
		}
	}
	return nil
}

// CurrentURL returns the address of the rendered page.
func (a *App) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flush()
	return a.url, nil
}

// Screenshot returns a textual rendering of the page.
func (a *App) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flush()
	var sb strings.Builder
	fmt.Fprintf(&sb, "url: %s\n", a.url)
	if b := a.current; b != nil {
		fmt.Fprintf(&sb, "board: %s closed=%t\n", b.name, b.closed)
		for _, l := range b.lists {
			names := make([]string, 0, len(l.cards))
			for _, c := range l.cards {
				names = append(names, c.name)
			}
			fmt.Fprintf(&sb, "  %s: %s\n", l.name, strings.Join(names, ", "))
		}
	}
	return []byte(sb.String()), nil
}

func (a *App) findList(name string) *list {
	if a.current == nil {
		return nil
	}
	for _, l := range a.current.lists {
		if l.name == name {
			return l
		}
	}
	return nil
}

func (a *App) listOf(c *card) *list {
	if a.current == nil {
		return nil
	}
	for _, l := range a.current.lists {
		for _, x := range l.cards {
			if x == c {
				return l
			}
		}
	}
	return nil
}

func (a *App) onOpenBoard() bool {
	return a.onPrimary() && a.current != nil && !a.current.deleted
}

// Resolve renders the concept against the current state, once.
func (a *App) Resolve(ctx context.Context, c locator.Concept, args ...string) ([]locator.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := c.Query(args...); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flush()
	if a.stalled[c] {
		return nil, nil
	}

	one := func(ok bool, text string, ref any) []locator.Element {
		if !ok {
			return nil
		}
		return []locator.Element{&element{app: a, concept: c, text: text, ref: ref}}
	}

	switch c {
	case locator.LoginLink:
		return one(a.onPrimary() && a.user == "", "Log in", nil), nil
	case locator.IdentityUsername:
		return one(a.onIdentity() && a.identity.stage == 0, a.identity.email, nil), nil
	case locator.IdentityContinue:
		return one(a.onIdentity() && a.identity.stage == 0, "Continue", nil), nil
	case locator.IdentityPassword:
		return one(a.onIdentity() && a.identity.stage == 1, "", nil), nil
	case locator.IdentitySubmit:
		return one(a.onIdentity() && a.identity.stage == 1, "Log in", nil), nil

	case locator.CreateMenu:
		return one(a.onPrimary() && a.user != "", "", nil), nil
	case locator.CreateBoardOption:
		return one(a.onPrimary() && a.createMenu, "Create board", nil), nil
	case locator.BoardTitleInput:
		return one(a.onPrimary() && a.createPopover, a.boardDraft, nil), nil
	case locator.CreateBoardSubmit:
		return one(a.onPrimary() && a.createPopover && a.boardDraft != "", "Create", nil), nil
	case locator.BoardTile:
		if !a.onBoardsPage() {
			return nil, nil
		}
		var out []locator.Element
		for _, b := range a.boards {
			if b.name == args[0] && !b.closed && !b.deleted {
				out = append(out, &element{app: a, concept: c, text: b.name, ref: b})
			}
		}
		return out, nil
	case locator.BoardHeader:
		return one(a.onOpenBoard() && a.current.name == args[0], args[0], a.current), nil

	case locator.AddListButton:
		return one(a.onOpenBoard() && !a.current.closed && !a.listComposer, "Add a list", nil), nil
	case locator.ListNameInput:
		return one(a.onOpenBoard() && a.listComposer, a.listDraft, nil), nil
	case locator.ListContainer:
		if !a.onOpenBoard() {
			return nil, nil
		}
		var out []locator.Element
		for _, l := range a.current.lists {
			if l.name == args[0] {
				out = append(out, &element{app: a, concept: c, text: l.name, ref: l})
			}
		}
		return out, nil

	case locator.AddCardButton:
		l := a.findList(args[0])
		if l == nil {
			return nil, locator.ErrScopeMissing
		}
		return one(!a.current.closed && a.cardComposer != l, "Add a card", l), nil
	case locator.CardComposerInput:
		return one(a.onOpenBoard() && a.cardComposer != nil, a.cardDraft, a.cardComposer), nil
	case locator.CardsOfList, locator.CardInList:
		l := a.findList(args[0])
		if l == nil {
			return nil, locator.ErrScopeMissing
		}
		var out []locator.Element
		for _, x := range l.cards {
			if c == locator.CardInList && x.name != args[1] {
				continue
			}
			out = append(out, &element{app: a, concept: c, text: x.name, ref: x})
		}
		return out, nil

	case locator.MoveAction:
		return one(a.onOpenBoard() && a.detail != nil, "Move", a.detail), nil
	case locator.MoveDestination:
		text := ""
		if a.moveTarget != nil {
			text = a.moveTarget.name
		}
		return one(a.onOpenBoard() && a.moveDialog, text, nil), nil
	case locator.MoveConfirm:
		return one(a.onOpenBoard() && a.moveDialog, "Move", nil), nil
	case locator.CardDetailClose:
		return one(a.onOpenBoard() && a.detail != nil, "", a.detail), nil

	case locator.BoardMenu:
		return one(a.onOpenBoard(), "", nil), nil
	case locator.CloseBoardOption:
		return one(a.onOpenBoard() && a.boardMenu && !a.current.closed, "Close board", nil), nil
	case locator.CloseBoardConfirm:
		return one(a.onOpenBoard() && a.closeConfirm, "Close", nil), nil
	case locator.BoardClosedBanner:
		return one(a.onOpenBoard() && a.current.closed, "This board is closed", nil), nil
	case locator.DeleteBoardOption:
		return one(a.onOpenBoard() && a.current.closed, "Permanently delete board", nil), nil
	case locator.DeleteBoardConfirm:
		return one(a.onOpenBoard() && a.deleteConfirm, "Delete", nil), nil
	case locator.BoardDeletedNotice:
		return one(a.onPrimary() && a.deletedNotice, "Board deleted", nil), nil
	}
	return nil, fmt.Errorf("kanbantest: concept %q not rendered by this app", string(c))
}
