// Package wait provides the bounded poll-until-ready primitive every action command
// uses against the asynchronously rendering UI.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/utils"
)

// ErrTimeout is matched by every *TimeoutError.
var ErrTimeout = errors.New("condition not met before timeout")

// Policy bounds one wait.
type Policy struct {
	Timeout     time.Duration
	Interval    time.Duration
	MaxInterval time.Duration
}

// DefaultPolicy mirrors the 15 second explicit wait of the original page objects.
var DefaultPolicy = Policy{
	Timeout:     15 * time.Second,
	Interval:    100 * time.Millisecond,
	MaxInterval: time.Second,
}

// WithTimeout returns a copy of p with a different timeout.
func (p Policy) WithTimeout(d time.Duration) Policy {
	p.Timeout = d
	return p
}

func (p Policy) normalized() Policy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultPolicy.Timeout
	}
	if p.Interval <= 0 {
		p.Interval = DefaultPolicy.Interval
	}
	if p.MaxInterval < p.Interval {
		p.MaxInterval = p.Interval
	}
	return p
}

// TimeoutError is returned when the probe never reported ready.
type TimeoutError struct {
	Waited   time.Duration
	Attempts int
	Last     error // last probe error, if any
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%v after %s (%d attempts)", ErrTimeout, e.Waited.Round(time.Millisecond), e.Attempts)
	if e.Last != nil {
		msg += ": last error: " + e.Last.Error()
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Last }

type stopError struct{ err error }

func (s stopError) Error() string { return s.err.Error() }
func (s stopError) Unwrap() error { return s.err }

// Stop marks a probe error as terminal; Until returns it without further polling.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return stopError{err: err}
}

// Probe checks a condition once. It returns the observed value and whether the
// condition holds. A non-nil error is remembered and polling continues, unless it
// was wrapped with Stop.
type Probe[T any] func(ctx context.Context) (T, bool, error)

// Until polls probe with backoff until it reports ready, the policy timeout expires,
// or ctx is cancelled. Cancellation of ctx is returned as ctx's error, not a timeout.
func Until[T any](ctx context.Context, p Policy, probe Probe[T]) (T, error) {
	p = p.normalized()
	start := time.Now()

	waitCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	sleep := utils.BackoffSleeper(p.Interval, p.MaxInterval, nil)

	var (
		zero     T
		last     error
		attempts int
	)
	for {
		attempts++
		v, ok, err := probe(waitCtx)
		if err != nil {
			var stop stopError
			if errors.As(err, &stop) {
				return zero, stop.err
			}
			last = err
		} else if ok {
			return v, nil
		}

		if err := sleep(waitCtx); err != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, &TimeoutError{Waited: time.Since(start), Attempts: attempts, Last: last}
		}
	}
}

// Condition is Until for probes that carry no value.
func Condition(ctx context.Context, p Policy, check func(ctx context.Context) (bool, error)) error {
	_, err := Until(ctx, p, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := check(ctx)
		return struct{}{}, ok, err
	})
	return err
}
