package actions

import (
	"fmt"
	"sync"
)

// Status is the authentication state of a Session.
type Status int

const (
	Anonymous Status = iota
	Authenticating
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Session is the suite's authentication state. Only Login moves it forward;
// Reset returns it to anonymous at teardown.
type Session struct {
	mu     sync.Mutex
	status Status
	user   string
}

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// User is the e-mail the session authenticated as, if any.
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == Authenticating {
		return fmt.Errorf("login already in progress")
	}
	s.status = Authenticating
	s.user = ""
	return nil
}

func (s *Session) complete(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Authenticated
	s.user = user
}

func (s *Session) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Anonymous
	s.user = ""
}

// Reset returns the session to anonymous.
func (s *Session) Reset() { s.abort() }
