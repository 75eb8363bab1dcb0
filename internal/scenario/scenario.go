// Package scenario runs the board workflows in their fixed order. Each scenario
// loads its fixtures, drives the action layer step by step and asserts the
// rendered result; the State it returns is handed to the next scenario.
package scenario

import (
	"context"
	"errors"
	"time"

	"boardcheck/internal/actions"
	"boardcheck/internal/appfault"
	"boardcheck/internal/failure"
	"boardcheck/internal/fixture"

	"go.uber.org/zap"
)

// Fixtures supplies fixture records. *fixture.Loader and fixture.Memory
// implement it.
type Fixtures interface {
	Credentials(ctx context.Context) (fixture.Credentials, error)
	Lists(ctx context.Context) ([]string, error)
	Cards(ctx context.Context) ([]fixture.Card, error)
	Moves(ctx context.Context) ([]fixture.Move, error)
}

// Scenario is one workflow. Run returns the state it leaves behind, including
// on failure, so that later scenarios see partial progress.
type Scenario interface {
	Name() string
	Run(ctx context.Context, env *Env, state State) (State, error)
}

type scenarioFunc struct {
	name string
	run  func(ctx context.Context, env *Env, state State) (State, error)
}

func (s scenarioFunc) Name() string { return s.name }

func (s scenarioFunc) Run(ctx context.Context, env *Env, state State) (State, error) {
	return s.run(ctx, env, state)
}

// Define builds a Scenario from a function.
func Define(name string, run func(ctx context.Context, env *Env, state State) (State, error)) Scenario {
	return scenarioFunc{name: name, run: run}
}

// StepResult is the outcome of one step of a scenario.
type StepResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Env is what a running scenario works with.
type Env struct {
	Commands *actions.Commands
	Fixtures Fixtures
	Filter   *appfault.Filter
	Logger   *zap.Logger

	scenario string
	steps    []StepResult
}

// Step runs fn as the named step. Uncaught application errors observed while the
// step ran fail it even when fn succeeded. A failing step is returned as a
// *failure.StepError naming the scenario and the step.
func (e *Env) Step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	if e.Filter != nil {
		if appErr := e.Filter.Drain(); appErr != nil {
			err = errors.Join(err, appErr)
		}
	}
	res := StepResult{Name: name, Duration: time.Since(start)}
	if err != nil {
		res.Error = err.Error()
	}
	e.steps = append(e.steps, res)

	if err != nil {
		e.Logger.Warn("step failed",
			zap.String("scenario", e.scenario),
			zap.String("step", name),
			zap.Error(err))
		return &failure.StepError{Scenario: e.scenario, Step: name, Err: err}
	}
	e.Logger.Debug("step passed",
		zap.String("scenario", e.scenario),
		zap.String("step", name),
		zap.Duration("duration", res.Duration))
	return nil
}

// Steps returns the steps run so far.
func (e *Env) Steps() []StepResult {
	return append([]StepResult(nil), e.steps...)
}
