package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/spiderq/internal/crawler"
	"github.com/nao1215/spiderq/internal/scheduler"
)

// SchedulerFactory opens the scheduler for one additional consumer.
// The returned release function is called when that consumer finishes.
type SchedulerFactory func(ctx context.Context, worker int) (scheduler.Scheduler, func(), error)

// EngineFactory builds the engine a consumer runs on its scheduler.
type EngineFactory func(sched scheduler.Scheduler, worker int) *crawler.Engine

// ConsumerGroup runs several crawler engines against one namespace.
type ConsumerGroup struct {
	newEngine    EngineFactory
	newScheduler SchedulerFactory
	workers      int
	logger       *slog.Logger
}

// GroupOption configures a ConsumerGroup.
type GroupOption func(*ConsumerGroup)

// WithWorkers sets the number of concurrent consumers.
// Values above 1 need WithSchedulerFactory.
func WithWorkers(n int) GroupOption {
	return func(g *ConsumerGroup) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithSchedulerFactory sets how consumers after the first get a scheduler.
func WithSchedulerFactory(f SchedulerFactory) GroupOption {
	return func(g *ConsumerGroup) {
		g.newScheduler = f
	}
}

// WithGroupLogger sets a custom logger.
func WithGroupLogger(logger *slog.Logger) GroupOption {
	return func(g *ConsumerGroup) {
		g.logger = logger
	}
}

// NewConsumerGroup creates a group with one worker by default.
func NewConsumerGroup(newEngine EngineFactory, opts ...GroupOption) *ConsumerGroup {
	g := &ConsumerGroup{
		newEngine: newEngine,
		workers:   1,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.logger == nil {
		g.logger = slog.Default()
	}

	return g
}

// Workers returns the configured number of consumers.
func (g *ConsumerGroup) Workers() int {
	return g.workers
}

// Run drains the namespace. Worker 0 uses shared; every other worker gets
// its own scheduler from the factory. The first consumer error cancels
// the rest. Stats from all workers are summed, even on error.
func (g *ConsumerGroup) Run(ctx context.Context, shared scheduler.Scheduler) (crawler.Stats, error) {
	if g.workers > 1 && g.newScheduler == nil {
		return crawler.Stats{}, fmt.Errorf("%d workers requested without a scheduler factory", g.workers)
	}

	g.logger.Info("starting consumers",
		"namespace", shared.Namespace(),
		"workers", g.workers,
	)
	startTime := time.Now()

	var (
		mu    sync.Mutex
		total crawler.Stats
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	for worker := range g.workers {
		eg.Go(func() error {
			sched := shared
			if worker > 0 {
				s, release, err := g.newScheduler(ctx, worker)
				if err != nil {
					return fmt.Errorf("failed to open scheduler for worker %d: %w", worker, err)
				}
				if release != nil {
					defer release()
				}
				sched = s
			}

			stats, err := g.newEngine(sched, worker).Run(ctx)

			mu.Lock()
			total.Add(stats)
			mu.Unlock()

			g.logger.Debug("consumer finished",
				"worker", worker,
				"claimed", stats.Claimed,
				"failed", stats.Failed,
			)
			if err != nil {
				return fmt.Errorf("worker %d: %w", worker, err)
			}
			return nil
		})
	}

	err := eg.Wait()

	g.logger.Info("consumers finished",
		"namespace", shared.Namespace(),
		"claimed", total.Claimed,
		"elapsed", time.Since(startTime),
	)

	return total, err
}
