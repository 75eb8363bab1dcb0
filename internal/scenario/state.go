package scenario

import (
	"errors"
	"fmt"
	"slices"
)

// Lifecycle is the state of the board a suite run works on.
type Lifecycle int

const (
	Absent Lifecycle = iota
	Open
	Closed
	Deleted
)

func (l Lifecycle) String() string {
	switch l {
	case Absent:
		return "absent"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("lifecycle(%d)", int(l))
	}
}

// BoardState identifies the board created by the run.
type BoardState struct {
	Name      string    `json:"name"`
	URL       string    `json:"url,omitempty"`
	Lifecycle Lifecycle `json:"lifecycle"`
}

// State is what earlier scenarios hand to later ones: the board they created and
// the lists and cards known to be on it.
type State struct {
	Authenticated bool                `json:"authenticated"`
	Board         BoardState          `json:"board"`
	Lists         []string            `json:"lists,omitempty"`
	Cards         map[string][]string `json:"cards,omitempty"`
}

// NewState returns the initial state for a run that will work on boardName.
func NewState(boardName string) State {
	return State{Board: BoardState{Name: boardName}, Cards: map[string][]string{}}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Lists = slices.Clone(s.Lists)
	out.Cards = make(map[string][]string, len(s.Cards))
	for k, v := range s.Cards {
		out.Cards[k] = slices.Clone(v)
	}
	return out
}

// HasList reports whether name was created by an earlier scenario.
func (s State) HasList(name string) bool {
	return slices.Contains(s.Lists, name)
}

func (s *State) addCard(list, card string) {
	if s.Cards == nil {
		s.Cards = map[string][]string{}
	}
	s.Cards[list] = append(s.Cards[list], card)
}

// moveCard moves the last occurrence of card from one list to the bottom of another.
func (s *State) moveCard(from, card, to string) {
	names := s.Cards[from]
	for i := len(names) - 1; i >= 0; i-- {
		if names[i] == card {
			s.Cards[from] = slices.Delete(names, i, i+1)
			break
		}
	}
	s.addCard(to, card)
}

// ErrPrecondition marks a scenario that did not run because the state handed to
// it lacks what it depends on.
var ErrPrecondition = errors.New("precondition not met")

func (s State) requireAuthenticated() error {
	if !s.Authenticated {
		return fmt.Errorf("%w: session is not authenticated", ErrPrecondition)
	}
	return nil
}

func (s State) requireBoard(allowed ...Lifecycle) error {
	if err := s.requireAuthenticated(); err != nil {
		return err
	}
	if !slices.Contains(allowed, s.Board.Lifecycle) {
		return fmt.Errorf("%w: board %q is %s", ErrPrecondition, s.Board.Name, s.Board.Lifecycle)
	}
	return nil
}

func (l Lifecycle) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Lifecycle) UnmarshalText(b []byte) error {
	for _, v := range []Lifecycle{Absent, Open, Closed, Deleted} {
		if v.String() == string(b) {
			*l = v
			return nil
		}
	}
	return fmt.Errorf("unknown board lifecycle %q", string(b))
}
