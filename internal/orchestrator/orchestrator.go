// Package orchestrator runs the collection and report steps in a fixed
// order and stops at the first failure.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seenimoa/mercadobr/internal/logging"
	"github.com/seenimoa/mercadobr/pkg/models"
)

// Step names in default run order.
const (
	StepIndicators = "indicators"
	StepEquities   = "equities"
	StepNews       = "news"
	StepReport     = "report"
)

// ErrUnknownStep is returned by RunStep for a name that was not added.
var ErrUnknownStep = errors.New("orchestrator: unknown step")

// StepResult is what one step reports back.
type StepResult struct {
	Name     string        `json:"name"`
	Rows     int           `json:"rows"`
	Written  string        `json:"written,omitempty"`
	Summary  string        `json:"summary"`
	Duration time.Duration `json:"duration"`
}

// Step is one unit of work.
type Step struct {
	Name string
	Run  func(ctx context.Context) (*StepResult, error)
}

// StepError reports the step that aborted a run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// RunReport collects the results of the steps that completed.
type RunReport struct {
	Started  time.Time     `json:"started"`
	Steps    []*StepResult `json:"steps"`
	Failed   string        `json:"failed,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Orchestrator runs steps sequentially.
type Orchestrator struct {
	steps []Step
	log   *logging.Logger
}

// New creates an orchestrator over steps, run in the given order.
func New(logger *logging.Logger, steps ...Step) *Orchestrator {
	return &Orchestrator{steps: steps, log: logger.With("orchestrator")}
}

// Steps returns the step names in run order.
func (o *Orchestrator) Steps() []string {
	names := make([]string, len(o.steps))
	for i, s := range o.steps {
		names[i] = s.Name
	}
	return names
}

// Run executes every step in order. The first failing step aborts the run
// and is returned as a *StepError.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	rep := &RunReport{Started: time.Now()}
	defer func() { rep.Duration = time.Since(rep.Started) }()

	for i, step := range o.steps {
		o.log.Info().Str("step", step.Name).Int("n", i+1).Int("of", len(o.steps)).Msg("running step")
		res, err := o.runOne(ctx, step)
		if err != nil {
			rep.Failed = step.Name
			o.log.Error().Err(err).Str("step", step.Name).Msg("step failed, aborting run")
			return rep, err
		}
		rep.Steps = append(rep.Steps, res)
		o.log.Info().Str("step", step.Name).Str("summary", res.Summary).Dur("duration", res.Duration).Msg("step finished")
	}
	return rep, nil
}

// RunStep executes a single step by name.
func (o *Orchestrator) RunStep(ctx context.Context, name string) (*StepResult, error) {
	for _, step := range o.steps {
		if step.Name == name {
			return o.runOne(ctx, step)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStep, name)
}

func (o *Orchestrator) runOne(ctx context.Context, step Step) (*StepResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StepError{Step: step.Name, Err: err}
	}
	start := time.Now()
	res, err := step.Run(ctx)
	if err != nil {
		return nil, &StepError{Step: step.Name, Err: err}
	}
	if res == nil {
		res = &StepResult{}
	}
	res.Name = step.Name
	res.Duration = time.Since(start)
	return res, nil
}

// CollectStep adapts a collector to a Step. The file is written only when
// the collector produced rows; a failed collection is a step failure.
func CollectStep[T any](name string, collect func(context.Context) ([]T, *models.CollectionReport), write func([]T) (string, error)) Step {
	return Step{
		Name: name,
		Run: func(ctx context.Context) (*StepResult, error) {
			items, report := collect(ctx)
			if report.Outcome == models.OutcomeFailed {
				if report.Err == nil {
					return nil, fmt.Errorf("%s collection failed", name)
				}
				return nil, report.Err
			}
			if report.Outcome == models.OutcomeRows && len(items) > 0 {
				path, err := write(items)
				if err != nil {
					return nil, err
				}
				report.Written = path
			}
			return &StepResult{Rows: report.Rows, Written: report.Written, Summary: report.Summary()}, nil
		},
	}
}
