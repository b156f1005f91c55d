package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/spiderq/internal/crawler"
	"github.com/nao1215/spiderq/internal/scheduler"
)

// Step is one stage of a pipeline run.
// Steps are executed in sequence against the same scheduler, and each one
// writes its outcome into the shared Run so later steps and the final
// report can see what happened before them.
//
// Steps carry their own configuration (the seed list, the consumer group)
// and are constructed before the pipeline executes, so a Step value can be
// inspected and logged by name without running it.
type Step interface {
	// Do executes the step against sched and records its outcome in run.
	// It returns an error only when the step could not do its job; partial
	// results such as skipped malformed records are recorded in run and
	// do not fail the step.
	Do(ctx context.Context, sched scheduler.Scheduler, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Run records what a pipeline execution did.
type Run struct {
	// Namespace is the namespace the run operated on.
	Namespace string

	// Performed lists the steps that ran, in order.
	Performed []string

	// Purged is true when the namespace was reset.
	Purged bool

	// Seeded is the number of seed requests handed to the scheduler.
	Seeded int

	// Drain accumulates the consumer statistics.
	Drain crawler.Stats

	// Err is the error that stopped the run, if any.
	Err error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing later steps after one fails.
// The first error is still returned and recorded in Run.Err. Failed steps
// are still listed in Run.Performed.
//
// The default stops at the first failure: a failed purge must not be
// followed by seeding into a namespace that still holds the old requests.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step against sched and returns what they did.
//
// Cancellation is checked between steps; a step handles its own. The
// returned Run is never nil, even when an error is returned, so callers
// can still report how far the run got.
func (p *Pipeline) Execute(ctx context.Context, sched scheduler.Scheduler) (*Run, error) {
	run := &Run{
		Namespace: sched.Namespace(),
		StartedAt: time.Now(),
	}
	defer func() { run.FinishedAt = time.Now() }()

	var firstErr error
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			run.Err = ctx.Err()
			return run, ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"namespace", run.Namespace,
		)

		if err := step.Do(ctx, sched, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"namespace", run.Namespace,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
				run.Err = err
			}
			if !p.continueOnError {
				return run, err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"namespace", run.Namespace,
			)
		}

		run.Performed = append(run.Performed, step.Name())
	}

	return run, firstErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
