package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/scheduler"
	"github.com/nao1215/spiderq/internal/storage"
)

// Handler processes one claimed request and returns the requests it discovered.
// A returned error marks the request as failed; the engine keeps going.
type Handler func(ctx context.Context, req *model.Request) ([]*model.Request, error)

// Engine drains a scheduler until it is empty or the context ends.
type Engine struct {
	sched   scheduler.Scheduler
	handler Handler
	logger  *slog.Logger

	// maxDepth limits how deep discovered requests may go.
	// Negative means unlimited.
	maxDepth int

	// maxRequests caps how many requests this engine claims.
	// 0 means unlimited.
	maxRequests int

	// batchSize is passed to every claim. 0 uses the scheduler's default.
	batchSize int

	// force claims without waiting for the throttle window.
	force bool

	// crossHost allows discovered requests on other hosts.
	crossHost bool

	// ignorePatterns are URL path globs to skip.
	ignorePatterns []string

	// followPatterns, if set, are the only URL path globs scheduled.
	followPatterns []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth sets the maximum depth of scheduled discoveries.
// 0 schedules nothing new, negative removes the limit.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithMaxRequests caps the number of claimed requests.
func WithMaxRequests(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRequests = n
		}
	}
}

// WithBatchSize sets the claim size.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		e.batchSize = n
	}
}

// WithForce makes the engine claim without waiting for the throttle window.
func WithForce(force bool) Option {
	return func(e *Engine) {
		e.force = force
	}
}

// WithCrossHost allows discovered requests to leave the parent's host.
func WithCrossHost(allow bool) Option {
	return func(e *Engine) {
		e.crossHost = allow
	}
}

// WithIgnorePatterns sets URL path patterns to skip.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) Option {
	return func(e *Engine) {
		e.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow.
// If set, only paths matching at least one pattern are scheduled.
func WithFollowPatterns(patterns []string) Option {
	return func(e *Engine) {
		e.followPatterns = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine. A nil handler accepts every request and
// discovers nothing.
func NewEngine(sched scheduler.Scheduler, handler Handler, opts ...Option) *Engine {
	e := &Engine{
		sched:    sched,
		handler:  handler,
		maxDepth: 5,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.handler == nil {
		e.handler = func(context.Context, *model.Request) ([]*model.Request, error) { return nil, nil }
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// Stats counts what one Run did.
type Stats struct {
	// Claimed is the number of requests received from the scheduler.
	Claimed int

	// Handled is the number of requests the handler accepted.
	Handled int

	// Failed is the number of requests the handler rejected.
	Failed int

	// Skipped is the number of claimed records that could not be decoded.
	Skipped int

	// Discovered is the number of requests returned by the handler.
	Discovered int

	// Scheduled is the number of discovered requests that passed the filters.
	Scheduled int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Claimed += o.Claimed
	s.Handled += o.Handled
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.Discovered += o.Discovered
	s.Scheduled += o.Scheduled
}

// Run claims and handles batches until the scheduler is empty, the
// request cap is hit or ctx ends. Stats are returned even on error.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if e.maxRequests > 0 && stats.Claimed >= e.maxRequests {
			return stats, nil
		}

		empty, err := e.sched.Empty(ctx)
		if err != nil {
			return stats, fmt.Errorf("failed to check queue: %w", err)
		}
		if empty {
			return stats, nil
		}

		reqs, err := e.next(ctx, e.claimSize(stats.Claimed))
		var skipped *storage.SkippedError
		switch {
		case errors.As(err, &skipped):
			stats.Skipped += len(skipped.Records)
			e.logger.Warn("skipped malformed records",
				"namespace", e.sched.Namespace(),
				"count", len(skipped.Records),
				"error", skipped,
			)
		case err != nil:
			return stats, err
		}

		for _, req := range reqs {
			stats.Claimed++
			e.handle(ctx, req, &stats)
		}
	}
}

// next claims a batch, with or without the throttle.
func (e *Engine) next(ctx context.Context, n int) ([]*model.Request, error) {
	if e.force {
		return e.sched.ForceNextRequests(ctx, n)
	}
	return e.sched.NextRequests(ctx, n)
}

// claimSize keeps the batch within the remaining request budget.
func (e *Engine) claimSize(claimed int) int {
	if e.maxRequests == 0 {
		return e.batchSize
	}
	remaining := e.maxRequests - claimed
	if e.batchSize <= 0 {
		return min(remaining, scheduler.DefaultBatchSize)
	}
	return min(remaining, e.batchSize)
}

// handle runs the handler on req and schedules what it discovered.
func (e *Engine) handle(ctx context.Context, req *model.Request, stats *Stats) {
	discovered, err := e.handler(ctx, req)
	if err != nil {
		stats.Failed++
		e.logger.Warn("request failed",
			"url", req.URL,
			"error", err,
		)
		return
	}
	stats.Handled++

	for _, next := range discovered {
		if next == nil {
			continue
		}
		stats.Discovered++

		if !e.allow(req, next) {
			e.logger.Debug("discovered request filtered", "url", next.URL)
			continue
		}
		if err := e.sched.Schedule(ctx, next); err != nil {
			e.logger.Warn("failed to schedule discovered request",
				"url", next.URL,
				"error", err,
			)
			continue
		}
		stats.Scheduled++
	}
}
