// Package locator maps semantic UI concepts ("create-board button", "list container
// by name") to declarative queries against the rendered page, and resolves them with
// bounded polling. Nothing above this package builds selectors.
package locator

import (
	"fmt"
)

// Concept names one UI element (or set of elements) the suite interacts with.
type Concept string

const (
	// Primary origin, anonymous.
	LoginLink Concept = "login link"

	// Identity provider origin.
	IdentityUsername Concept = "identity username"
	IdentityContinue Concept = "identity continue"
	IdentityPassword Concept = "identity password"
	IdentitySubmit   Concept = "identity submit"

	// Board creation.
	CreateMenu        Concept = "create menu"
	CreateBoardOption Concept = "create board option"
	BoardTitleInput   Concept = "board title input"
	CreateBoardSubmit Concept = "create board submit"
	BoardTile         Concept = "board tile"   // (board)
	BoardHeader       Concept = "board header" // (board)

	// Lists.
	AddListButton Concept = "add list button"
	ListNameInput Concept = "list name input"
	ListContainer Concept = "list container" // (list)

	// Cards.
	AddCardButton     Concept = "add card button" // (list)
	CardComposerInput Concept = "card composer input"
	CardsOfList       Concept = "cards of list" // (list)
	CardInList        Concept = "card in list"  // (list, card)

	// Card detail and move dialog.
	MoveAction      Concept = "move action"
	MoveDestination Concept = "move destination"
	MoveConfirm     Concept = "move confirm"
	CardDetailClose Concept = "card detail close"

	// Board closure and deletion.
	BoardMenu          Concept = "board menu"
	CloseBoardOption   Concept = "close board option"
	CloseBoardConfirm  Concept = "close board confirm"
	BoardClosedBanner  Concept = "board closed banner"
	DeleteBoardOption  Concept = "delete board option"
	DeleteBoardConfirm Concept = "delete board confirm"
	BoardDeletedNotice Concept = "board deleted notice"
)

// Query is a declarative element lookup.
//
// Selector is a CSS selector. Text, when set, filters matches by their rendered text:
// exact equality when Exact is true, containment otherwise. Within scopes the search to
// the first element matched by the parent query. Closest replaces each match by its
// nearest ancestor matching the given selector.
type Query struct {
	Selector string
	Text     string
	Exact    bool
	Within   *Query
	Closest  string
}

func (q Query) String() string {
	s := q.Selector
	if q.Text != "" {
		op := "~="
		if q.Exact {
			op = "=="
		}
		s += fmt.Sprintf("[text%s%q]", op, q.Text)
	}
	if q.Closest != "" {
		s += " ^" + q.Closest
	}
	if q.Within != nil {
		s = q.Within.String() + " >> " + s
	}
	return s
}

// ReservedLabels are affordance texts the catalog matches by containment. Fixture
// names containing one of these are ambiguous against the catalog.
var ReservedLabels = []string{
	"Log in",
	"Continue",
	"Create board",
	"Add a list",
	"Add a card",
	"Close board",
	"Permanently delete board",
	"This board is closed",
}

type entry struct {
	arity int
	build func(args []string) Query
}

func static(q Query) entry {
	return entry{build: func([]string) Query { return q }}
}

func listContainer(name string) Query {
	return Query{Selector: "li h2", Text: name, Exact: true, Closest: "li"}
}

var table = map[Concept]entry{
	LoginLink: static(Query{Selector: "a", Text: "Log in"}),

	IdentityUsername: static(Query{Selector: "#username"}),
	IdentityContinue: static(Query{Selector: "button", Text: "Continue"}),
	IdentityPassword: static(Query{Selector: "#password"}),
	IdentitySubmit:   static(Query{Selector: "button", Text: "Log in"}),

	CreateMenu:        static(Query{Selector: `[data-testid="AddIcon"]`}),
	CreateBoardOption: static(Query{Selector: "button", Text: "Create board"}),
	BoardTitleInput:   static(Query{Selector: `input[data-testid="create-board-title-input"]`}),
	CreateBoardSubmit: static(Query{Selector: `button[data-testid="create-board-submit-button"]`}),
	BoardTile: {arity: 1, build: func(a []string) Query {
		return Query{Selector: `a[href*="/b/"]`, Text: a[0], Exact: true}
	}},
	BoardHeader: {arity: 1, build: func(a []string) Query {
		return Query{Selector: `h1[data-testid="board-name-display"]`, Text: a[0], Exact: true}
	}},

	AddListButton: static(Query{Selector: "button", Text: "Add a list"}),
	ListNameInput: static(Query{Selector: `textarea[placeholder="Enter list name…"]`}),
	ListContainer: {arity: 1, build: func(a []string) Query { return listContainer(a[0]) }},

	AddCardButton: {arity: 1, build: func(a []string) Query {
		lc := listContainer(a[0])
		return Query{Selector: "button", Text: "Add a card", Within: &lc}
	}},
	CardComposerInput: static(Query{Selector: `textarea[data-testid="list-card-composer-textarea"]`}),
	CardsOfList: {arity: 1, build: func(a []string) Query {
		lc := listContainer(a[0])
		return Query{Selector: `a[data-testid="card-name"]`, Within: &lc}
	}},
	CardInList: {arity: 2, build: func(a []string) Query {
		lc := listContainer(a[0])
		return Query{Selector: `a[data-testid="card-name"]`, Text: a[1], Exact: true, Within: &lc}
	}},

	MoveAction:      static(Query{Selector: `a[title="Move"]`}),
	MoveDestination: static(Query{Selector: `[data-testid="move-card-popover-select-list-destination"]`}),
	MoveConfirm:     static(Query{Selector: `button[data-testid$="move-card-popover-move-button"]`}),
	CardDetailClose: static(Query{Selector: `span[data-testid$="CloseIcon"]`}),

	BoardMenu:          static(Query{Selector: `button[aria-label="Show menu"]`}),
	CloseBoardOption:   static(Query{Selector: "button, a", Text: "Close board"}),
	CloseBoardConfirm:  static(Query{Selector: `input[value="Close"]`}),
	BoardClosedBanner:  static(Query{Selector: "p", Text: "This board is closed"}),
	DeleteBoardOption:  static(Query{Selector: "button", Text: "Permanently delete board"}),
	DeleteBoardConfirm: static(Query{Selector: `button[data-testid*="close-board-delete-board-confirm-button"]`}),
	BoardDeletedNotice: static(Query{Selector: `[data-testid="board-deleted-flag"], [role="alert"]`, Text: "deleted"}),
}

// Concepts returns every concept in the catalog.
func Concepts() []Concept {
	out := make([]Concept, 0, len(table))
	for c := range table {
		out = append(out, c)
	}
	return out
}

// Arity is the number of parameters the concept takes.
func (c Concept) Arity() int {
	return table[c].arity
}

// Query builds the declarative lookup for c.
func (c Concept) Query(args ...string) (Query, error) {
	e, ok := table[c]
	if !ok {
		return Query{}, fmt.Errorf("unknown concept %q", string(c))
	}
	if len(args) != e.arity {
		return Query{}, fmt.Errorf("concept %q takes %d argument(s), got %d", string(c), e.arity, len(args))
	}
	return e.build(args), nil
}
