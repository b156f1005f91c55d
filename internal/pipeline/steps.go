package pipeline

import (
	"context"
	"fmt"

	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/scheduler"
)

// PurgeStep clears the scheduler's namespace. It is the only way a run
// resets a queue, so orchestrators add it only when a reset is configured.
type PurgeStep struct{}

// NewPurgeStep creates a PurgeStep.
func NewPurgeStep() *PurgeStep {
	return &PurgeStep{}
}

// Name returns the step name.
func (s *PurgeStep) Name() string {
	return "purge"
}

// Do purges the namespace.
func (s *PurgeStep) Do(ctx context.Context, sched scheduler.Scheduler, run *Run) error {
	if err := sched.Purge(ctx); err != nil {
		return err
	}
	run.Purged = true
	return nil
}

// SeedStep schedules start requests.
type SeedStep struct {
	requests []*model.Request
}

// NewSeedStep creates a SeedStep for raw URLs at depth 0.
// Blank entries are ignored.
func NewSeedStep(urls []string) (*SeedStep, error) {
	reqs := make([]*model.Request, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		req, err := model.NewRequest(u)
		if err != nil {
			return nil, fmt.Errorf("invalid seed %q: %w", u, err)
		}
		reqs = append(reqs, req)
	}
	return &SeedStep{requests: reqs}, nil
}

// NewSeedRequestsStep creates a SeedStep from prepared requests.
func NewSeedRequestsStep(reqs ...*model.Request) *SeedStep {
	return &SeedStep{requests: reqs}
}

// Name returns the step name.
func (s *SeedStep) Name() string {
	return "seed"
}

// Do schedules every seed request.
func (s *SeedStep) Do(ctx context.Context, sched scheduler.Scheduler, run *Run) error {
	for _, req := range s.requests {
		if err := sched.Schedule(ctx, req); err != nil {
			return err
		}
		run.Seeded++
	}
	return nil
}

// DrainStep consumes the namespace with a ConsumerGroup.
type DrainStep struct {
	group *ConsumerGroup
}

// NewDrainStep creates a DrainStep.
func NewDrainStep(group *ConsumerGroup) *DrainStep {
	return &DrainStep{group: group}
}

// Name returns the step name.
func (s *DrainStep) Name() string {
	return "drain"
}

// Do runs the group; the pipeline's scheduler serves the first consumer.
func (s *DrainStep) Do(ctx context.Context, sched scheduler.Scheduler, run *Run) error {
	stats, err := s.group.Run(ctx, sched)
	run.Drain.Add(stats)
	return err
}
