package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/mercadobr/internal/logging"
)

// ErrEmptyPipeline is returned when Run is called without stages.
var ErrEmptyPipeline = errors.New("agent: pipeline has no stages")

// Stage is one step of a Pipeline. Task builds the stage's user message
// from the outputs of every stage that ran before it.
type Stage struct {
	Name  string
	Agent Agent
	Task  func(prior []StageOutput) string
}

// StageOutput is what a completed stage hands to the stages after it.
type StageOutput struct {
	Name    string        `json:"name"`
	Agent   string        `json:"agent"`
	Content string        `json:"content"`
	Result  *AgentResult  `json:"-"`
	Elapsed time.Duration `json:"elapsed"`
}

// StageError reports which stage aborted the pipeline.
type StageError struct {
	Stage string
	Index int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("agent: stage %d (%s) failed: %v", e.Index+1, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result is the outcome of a full pipeline run.
type Result struct {
	Raw      string        `json:"raw"`
	Stages   []StageOutput `json:"stages"`
	Duration time.Duration `json:"duration"`
}

// Text returns the final report text: Raw when present, otherwise the last
// non-empty stage content, otherwise every stage content joined.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	if s := strings.TrimSpace(r.Raw); s != "" {
		return r.Raw
	}
	for i := len(r.Stages) - 1; i >= 0; i-- {
		if strings.TrimSpace(r.Stages[i].Content) != "" {
			return r.Stages[i].Content
		}
	}
	parts := make([]string, 0, len(r.Stages))
	for _, st := range r.Stages {
		parts = append(parts, st.Content)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// Pipeline runs its stages strictly in order. The first failing stage
// aborts the run; nothing is retried.
type Pipeline struct {
	stages []Stage
	log    *logging.Logger
}

// NewPipeline creates a pipeline over the given stages.
func NewPipeline(logger *logging.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, log: logger.With("pipeline")}
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Run executes every stage and returns the collected outputs.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if len(p.stages) == 0 {
		return nil, ErrEmptyPipeline
	}

	start := time.Now()
	outputs := make([]StageOutput, 0, len(p.stages))

	for i, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Stage: stage.Name, Index: i, Err: err}
		}

		task := ""
		if stage.Task != nil {
			task = stage.Task(outputs)
		}

		p.log.Info().Str("stage", stage.Name).Str("agent", stage.Agent.Name()).Int("step", i+1).Msg("stage started")

		stageStart := time.Now()
		res, err := stage.Agent.Process(ctx, task)
		if err != nil {
			p.log.Error().Err(err).Str("stage", stage.Name).Msg("stage failed")
			return nil, &StageError{Stage: stage.Name, Index: i, Err: err}
		}

		outputs = append(outputs, StageOutput{
			Name:    stage.Name,
			Agent:   stage.Agent.Name(),
			Content: res.Content,
			Result:  res,
			Elapsed: time.Since(stageStart),
		})
	}

	return &Result{
		Raw:      outputs[len(outputs)-1].Content,
		Stages:   outputs,
		Duration: time.Since(start),
	}, nil
}
