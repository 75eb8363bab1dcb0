// Package fixture loads the externally supplied, read-only scenario inputs:
// credentials, list names, card definitions and move instructions.
package fixture

import (
	"errors"
	"fmt"
	"strings"

	"boardcheck/internal/locator"
)

// Credentials is passed by value into the identity-provider phase of login.
type Credentials struct {
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"password"`
}

// String redacts the password.
func (c Credentials) String() string {
	return fmt.Sprintf("{email:%s password:<redacted>}", c.Email)
}

// Empty reports whether either field is missing.
func (c Credentials) Empty() bool {
	return c.Email == "" || c.Password == ""
}

// Lists is the lists fixture: {"lists": [...]}.
type Lists struct {
	Lists []string `json:"lists" yaml:"lists"`
}

// Card places one card into a list.
type Card struct {
	ListName string `json:"listName" yaml:"listName"`
	CardName string `json:"cardName" yaml:"cardName"`
}

// Cards is the cards fixture: {"cards": [...]}.
type Cards struct {
	Cards []Card `json:"cards" yaml:"cards"`
}

// Move is one move instruction.
type Move struct {
	FromList string `json:"fromList" yaml:"fromList"`
	CardName string `json:"cardName" yaml:"cardName"`
	ToList   string `json:"toList" yaml:"toList"`
}

func (m Move) String() string {
	return fmt.Sprintf("%q: %q -> %q", m.CardName, m.FromList, m.ToList)
}

// Set is every fixture a suite run needs, fully loaded.
type Set struct {
	Credentials Credentials
	Lists       []string
	Cards       []Card
	Moves       []Move
}

// CardGroup is a run of consecutive cards targeting the same list.
type CardGroup struct {
	ListName string
	Cards    []string
}

// GroupByList splits cards into runs of consecutive same-list entries, preserving
// order within and across runs. A list that reappears later starts a new run.
func GroupByList(cards []Card) []CardGroup {
	var groups []CardGroup
	for _, c := range cards {
		if n := len(groups); n > 0 && groups[n-1].ListName == c.ListName {
			groups[n-1].Cards = append(groups[n-1].Cards, c.CardName)
			continue
		}
		groups = append(groups, CardGroup{ListName: c.ListName, Cards: []string{c.CardName}})
	}
	return groups
}

// ErrNameCollision is returned when a fixture name would be ambiguous against the
// locator catalog or the board name.
var ErrNameCollision = errors.New("fixture name collides with a reserved label")

// ErrEmptyName is returned for blank list or card names.
var ErrEmptyName = errors.New("fixture name is empty")

// Validate applies the collision policy: list and card names must be non-blank,
// must not contain a reserved affordance label, and must not equal the board name.
// Affordances are matched by containment, so "Close board reminder" is rejected.
// Lists referenced by cards and moves must be declared in the lists fixture.
func (s *Set) Validate(boardName string) error {
	var errs []error
	check := func(kind, name string) {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			errs = append(errs, fmt.Errorf("%s: %w", kind, ErrEmptyName))
			return
		}
		if strings.EqualFold(trimmed, boardName) {
			errs = append(errs, fmt.Errorf("%s %q equals board name: %w", kind, name, ErrNameCollision))
		}
		lower := strings.ToLower(trimmed)
		for _, label := range locator.ReservedLabels {
			if strings.Contains(lower, strings.ToLower(label)) {
				errs = append(errs, fmt.Errorf("%s %q contains %q: %w", kind, name, label, ErrNameCollision))
			}
		}
	}

	declared := make(map[string]bool, len(s.Lists))
	for _, l := range s.Lists {
		check("list", l)
		declared[l] = true
	}
	for _, c := range s.Cards {
		check("card", c.CardName)
		if !declared[c.ListName] {
			errs = append(errs, fmt.Errorf("card %q targets undeclared list %q", c.CardName, c.ListName))
		}
	}
	for _, m := range s.Moves {
		if !declared[m.FromList] || !declared[m.ToList] {
			errs = append(errs, fmt.Errorf("move %s references an undeclared list", m))
		}
	}
	return errors.Join(errs...)
}
