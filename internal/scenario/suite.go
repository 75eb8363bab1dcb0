package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boardcheck/internal/actions"
	"boardcheck/internal/appfault"
	"boardcheck/internal/failure"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result is the verdict for one scenario.
type Result int

const (
	Passed Result = iota
	Failed
	Skipped
	Errored
)

func (r Result) String() string {
	switch r {
	case Passed:
		return "PASSED"
	case Failed:
		return "FAILED"
	case Skipped:
		return "SKIPPED"
	case Errored:
		return "ERROR"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

func (r Result) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Result) UnmarshalText(b []byte) error {
	for _, v := range []Result{Passed, Failed, Skipped, Errored} {
		if v.String() == string(b) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown result %q", string(b))
}

// Outcome is what one scenario did.
type Outcome struct {
	Scenario string        `json:"scenario"`
	Result   Result        `json:"result"`
	Step     string        `json:"step,omitempty"`
	Kind     string        `json:"kind,omitempty"`
	Error    string        `json:"error,omitempty"`
	Steps    []StepResult  `json:"steps,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`

	Err error `json:"-"`
}

// Report is the result of one suite run.
type Report struct {
	RunID    string         `json:"run_id"`
	Board    string         `json:"board"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Outcomes []Outcome      `json:"outcomes"`
	State    State          `json:"state"`
	Faults   appfault.Stats `json:"faults"`
}

// Passed reports whether every scenario passed.
func (r *Report) Passed() bool {
	for _, o := range r.Outcomes {
		if o.Result != Passed {
			return false
		}
	}
	return len(r.Outcomes) > 0
}

// Count returns the number of outcomes with result res.
func (r *Report) Count(res Result) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Result == res {
			n++
		}
	}
	return n
}

// Outcome returns the outcome of the named scenario.
func (r *Report) Outcome(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Scenario == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// Options configures a Suite.
type Options struct {
	// BoardName is the board the run creates and deletes.
	BoardName string
	// Scenarios defaults to DefaultSuite().
	Scenarios []Scenario
	// ScenarioTimeout bounds each scenario; zero leaves only the caller's context.
	ScenarioTimeout time.Duration
	Reporters       []Reporter
}

// DefaultBoardName is used when Options.BoardName is empty.
const DefaultBoardName = "Board1"

// Suite runs scenarios in order against one browser session.
type Suite struct {
	commands *actions.Commands
	fixtures Fixtures
	filter   *appfault.Filter
	opts     Options
	logger   *zap.Logger
}

// New returns a suite. filter may be nil, in which case a filter with the
// default allow-list is used.
func New(commands *actions.Commands, fixtures Fixtures, filter *appfault.Filter, opts Options, logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	if filter == nil {
		filter = appfault.NewFilter(appfault.DefaultPolicy(), logger)
	}
	if opts.BoardName == "" {
		opts.BoardName = DefaultBoardName
	}
	if len(opts.Scenarios) == 0 {
		opts.Scenarios = DefaultSuite()
	}
	return &Suite{commands: commands, fixtures: fixtures, filter: filter, opts: opts, logger: logger}
}

// Run executes every scenario in order. A scenario that fails does not stop the
// ones after it; they run against whatever state it left and usually fail or
// skip in turn. The session is reset to anonymous when the run ends.
func (s *Suite) Run(ctx context.Context) *Report {
	report := &Report{
		RunID:   uuid.NewString(),
		Board:   s.opts.BoardName,
		Started: time.Now(),
	}
	logger := s.logger.With(zap.String("run_id", report.RunID))

	if src, ok := s.commands.Driver().(appfault.Source); ok {
		s.filter.Register(src)
	} else {
		logger.Warn("driver does not report application errors")
	}

	names := make([]string, len(s.opts.Scenarios))
	for i, sc := range s.opts.Scenarios {
		names[i] = sc.Name()
	}
	for _, r := range s.opts.Reporters {
		r.SuiteStarted(report.RunID, s.opts.BoardName, names)
	}

	state := NewState(s.opts.BoardName)
	for _, sc := range s.opts.Scenarios {
		for _, r := range s.opts.Reporters {
			r.ScenarioStarted(sc.Name())
		}
		var o Outcome
		o, state = s.runOne(ctx, logger, sc, state)
		report.Outcomes = append(report.Outcomes, o)
		for _, r := range s.opts.Reporters {
			r.ScenarioFinished(o)
		}
	}

	s.commands.Session().Reset()
	if err := s.filter.Drain(); err != nil {
		logger.Warn("application errors after the last step", zap.Error(err))
	}
	report.State = state
	report.Faults = s.filter.Stats()
	report.Finished = time.Now()
	logger.Info("suite finished",
		zap.Int("passed", report.Count(Passed)),
		zap.Int("failed", report.Count(Failed)),
		zap.Int("skipped", report.Count(Skipped)),
		zap.Int("errored", report.Count(Errored)),
		zap.Duration("duration", report.Finished.Sub(report.Started)))
	for _, r := range s.opts.Reporters {
		r.SuiteFinished(report)
	}
	return report
}

func (s *Suite) runOne(ctx context.Context, logger *zap.Logger, sc Scenario, state State) (Outcome, State) {
	o := Outcome{Scenario: sc.Name(), Started: time.Now()}
	env := &Env{
		Commands: s.commands,
		Fixtures: s.fixtures,
		Filter:   s.filter,
		Logger:   logger,
		scenario: sc.Name(),
	}

	var err error
	if err = ctx.Err(); err != nil {
		err = fmt.Errorf("%w: %w", ErrPrecondition, err)
	} else {
		sctx, cancel := ctx, context.CancelFunc(func() {})
		if s.opts.ScenarioTimeout > 0 {
			sctx, cancel = context.WithTimeout(ctx, s.opts.ScenarioTimeout)
		}
		state, err = sc.Run(sctx, env, state.Clone())
		cancel()
	}

	o.Duration = time.Since(o.Started)
	o.Steps = env.Steps()
	o.Result = classify(err)
	if err != nil {
		o.Err = err
		o.Error = err.Error()
		o.Step = failure.StepOf(err)
		if k := failure.KindOf(err); k != failure.KindUnknown {
			o.Kind = k.String()
		}
	}

	fields := []zap.Field{
		zap.String("scenario", o.Scenario),
		zap.Stringer("result", o.Result),
		zap.Duration("duration", o.Duration),
	}
	switch o.Result {
	case Passed:
		logger.Info("scenario passed", fields...)
	case Skipped:
		logger.Warn("scenario skipped", append(fields, zap.Error(err))...)
	default:
		logger.Error("scenario failed", append(fields, zap.String("step", o.Step), zap.Error(err))...)
	}
	return o, state
}

func classify(err error) Result {
	switch {
	case err == nil:
		return Passed
	case errors.Is(err, ErrPrecondition):
		return Skipped
	case failure.KindOf(err) != failure.KindUnknown:
		return Failed
	default:
		return Errored
	}
}
