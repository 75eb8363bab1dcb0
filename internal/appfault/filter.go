// Package appfault decides which uncaught application errors fail a scenario.
//
// The browser reports every uncaught exception of the application under test to a
// Filter. Messages matching the allow-list are recorded and dropped; everything else
// is held until the orchestrator drains the filter at the end of a step.
package appfault

import (
	"errors"
	"strings"
	"sync"

	"boardcheck/internal/failure"

	"go.uber.org/zap"
)

// ResizeObserverLoop is the benign layout notification the board UI emits while
// lists reflow.
const ResizeObserverLoop = "ResizeObserver loop completed with undelivered notifications"

// Verdict is the outcome of classifying one message.
type Verdict int

const (
	Genuine Verdict = iota
	Ignored
)

func (v Verdict) String() string {
	if v == Ignored {
		return "ignored"
	}
	return "genuine"
}

// Policy is an allow-list of message fragments.
type Policy struct {
	Allow []string `yaml:"allow" json:"allow"`
}

// DefaultPolicy suppresses only the ResizeObserver loop notification.
func DefaultPolicy() Policy {
	return Policy{Allow: []string{ResizeObserverLoop}}
}

// Classify reports Ignored when message contains one of the allowed fragments.
// Matching is case-sensitive substring containment.
func (p Policy) Classify(message string) Verdict {
	for _, frag := range p.Allow {
		if frag != "" && strings.Contains(message, frag) {
			return Ignored
		}
	}
	return Genuine
}

// Stats counts what a filter has seen since it was created.
type Stats struct {
	Ignored int `json:"ignored"`
	Genuine int `json:"genuine"`
}

// Filter applies a Policy to a stream of application errors. It is safe for
// concurrent use; the browser delivers events from its own goroutine.
type Filter struct {
	policy Policy
	logger *zap.Logger

	once       sync.Once
	registered bool

	mu      sync.Mutex
	pending []error
	stats   Stats
}

// NewFilter returns a filter for policy.
func NewFilter(policy Policy, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{policy: policy, logger: logger}
}

// Source is anything that delivers uncaught application errors to a sink.
type Source interface {
	SetExceptionSink(sink func(message string))
}

// Register attaches the filter to src. Only the first call per filter has any
// effect, so the policy is installed once per suite run.
func (f *Filter) Register(src Source) {
	f.once.Do(func() {
		src.SetExceptionSink(f.Observe)
		f.mu.Lock()
		f.registered = true
		f.mu.Unlock()
	})
}

// Registered reports whether Register has attached the filter.
func (f *Filter) Registered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered
}

// Observe classifies one uncaught application error.
func (f *Filter) Observe(message string) {
	verdict := f.policy.Classify(message)

	f.mu.Lock()
	defer f.mu.Unlock()
	if verdict == Ignored {
		f.stats.Ignored++
		f.logger.Debug("application error suppressed", zap.String("message", message))
		return
	}
	f.stats.Genuine++
	f.pending = append(f.pending, failure.Application(message))
	f.logger.Warn("application error", zap.String("message", message))
}

// Check classifies message and returns the error it would produce: an
// IgnoredApplicationError for allowed messages, ApplicationError otherwise.
func (f *Filter) Check(message string) error {
	if f.policy.Classify(message) == Ignored {
		return failure.Ignored(message)
	}
	return failure.Application(message)
}

// Drain returns the genuine errors observed since the last drain, joined, and
// clears them. It returns nil when only ignored errors were seen.
func (f *Filter) Drain() error {
	f.mu.Lock()
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()
	return errors.Join(pending...)
}

// Stats returns the running counts.
func (f *Filter) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}
