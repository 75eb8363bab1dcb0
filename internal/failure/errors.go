// Package failure defines the error taxonomy shared by the command layer and the
// scenario orchestrator. Every failure carries the action and, where relevant, the
// step that did not complete, so a report can name the UI condition that was not met.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAuthenticationFailed
	KindCreationFailed
	KindMoveFailed
	KindTransitionFailed
	KindAssertionFailed
	KindApplicationError
	KindIgnoredApplicationError
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindAuthenticationFailed:
		return "AuthenticationFailed"
	case KindCreationFailed:
		return "CreationFailed"
	case KindMoveFailed:
		return "MoveFailed"
	case KindTransitionFailed:
		return "TransitionFailed"
	case KindAssertionFailed:
		return "AssertionFailed"
	case KindApplicationError:
		return "ApplicationError"
	case KindIgnoredApplicationError:
		return "IgnoredApplicationError"
	default:
		return "Unknown"
	}
}

// Move steps, in the order the move command performs them.
const (
	StepLocateCard        = "locate card"
	StepOpenDetail        = "open detail"
	StepOpenMoveDialog    = "open move dialog"
	StepSelectDestination = "select destination"
	StepConfirm           = "confirm"
	StepCloseDetail       = "close detail"
	StepSettle            = "settle"
)

// Board transition steps.
const (
	StepLocateBoard   = "locate board"
	StepOpenMenu      = "open menu"
	StepSelectClose   = "select close"
	StepConfirmClose  = "confirm close"
	StepAwaitClosed   = "await closed banner"
	StepRequireClosed = "require closed"
	StepSelectDelete  = "select delete"
	StepConfirmDelete = "confirm delete"
	StepAwaitDeleted  = "await deletion notice"
)

// Login phases.
const (
	PhaseCredentials = "credentials"
	PhaseStart       = "start"
	PhaseNavigate    = "navigate"
	PhaseHandOff     = "hand-off"
	PhaseIdentity    = "identity"
	PhaseRoute       = "post-login route"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Action  string // command or concept that failed, e.g. "move card"
	Step    string // step within the action, empty for single-step actions
	Subject string // entity the action was applied to
	Detail  string
	Err     error
}

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrAuthenticationFailed    = &Error{Kind: KindAuthenticationFailed}
	ErrCreationFailed          = &Error{Kind: KindCreationFailed}
	ErrMoveFailed              = &Error{Kind: KindMoveFailed}
	ErrTransitionFailed        = &Error{Kind: KindTransitionFailed}
	ErrAssertionFailed         = &Error{Kind: KindAssertionFailed}
	ErrApplicationError        = &Error{Kind: KindApplicationError}
	ErrIgnoredApplicationError = &Error{Kind: KindIgnoredApplicationError}
)

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Action != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Action)
	}
	if e.Subject != "" {
		fmt.Fprintf(&sb, " %q", e.Subject)
	}
	if e.Step != "" {
		fmt.Fprintf(&sb, " at step %q", e.Step)
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NotFound reports that a UI concept did not resolve before its timeout.
func NotFound(concept string, args []string, err error) *Error {
	subject := ""
	if len(args) > 0 {
		subject = strings.Join(args, " / ")
	}
	return &Error{Kind: KindNotFound, Action: concept, Subject: subject, Err: err}
}

// AuthenticationFailed reports a login that never reached its post-login route.
func AuthenticationFailed(phase string, err error) *Error {
	return &Error{Kind: KindAuthenticationFailed, Action: "login", Step: phase, Err: err}
}

// CreationFailed reports that a board, list or card was never observed after submission.
func CreationFailed(entity, name string, err error) *Error {
	return &Error{Kind: KindCreationFailed, Action: "create " + entity, Subject: name, Err: err}
}

// MoveFailed reports the move step that stalled.
func MoveFailed(step, card string, err error) *Error {
	return &Error{Kind: KindMoveFailed, Action: "move card", Step: step, Subject: card, Err: err}
}

// TransitionFailed reports a board close or delete that stopped at step.
func TransitionFailed(action, board, step string, err error) *Error {
	return &Error{Kind: KindTransitionFailed, Action: action, Step: step, Subject: board, Err: err}
}

// AssertionFailed reports an expected-versus-actual mismatch.
func AssertionFailed(subject, expected, actual string) *Error {
	return &Error{
		Kind:    KindAssertionFailed,
		Action:  "assert",
		Subject: subject,
		Detail:  fmt.Sprintf("expected %s, got %s", expected, actual),
	}
}

// Application reports an uncaught error from the target application that is not suppressed.
func Application(message string) *Error {
	return &Error{Kind: KindApplicationError, Action: "uncaught application error", Detail: message}
}

// Ignored reports an uncaught application error that matched the allow-list.
func Ignored(message string) *Error {
	return &Error{Kind: KindIgnoredApplicationError, Action: "uncaught application error", Detail: message}
}

// IsIgnored reports whether err only carries suppressed application errors.
func IsIgnored(err error) bool {
	return err != nil && errors.Is(err, ErrIgnoredApplicationError) && !errors.Is(err, ErrApplicationError)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StepError attaches the failing scenario step to an error.
type StepError struct {
	Scenario string
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %q: %v", e.Scenario, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// StepOf returns the innermost failing step recorded in err, or "".
func StepOf(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}
