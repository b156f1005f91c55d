package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/spiderq/internal/clock"
	"github.com/nao1215/spiderq/internal/model"
)

// DefaultBatchSize is used when a claim asks for a non-positive batch.
const DefaultBatchSize = 25

// ErrNilRequest is returned when Schedule is called with a nil request.
var ErrNilRequest = errors.New("cannot schedule nil request")

// Scheduler is a rate-limited FIFO queue of crawl requests.
//
// A Scheduler is bound to one namespace at a time. Every claim removes the
// returned requests from the pending set, so a request is handed out at
// most once per namespace until Purge resets it. Implementations are safe
// for concurrent use.
type Scheduler interface {
	// Schedule makes req pending. Durable schedulers drop requests whose
	// key is already stored, including keys that were already claimed, and
	// report the drop as success.
	Schedule(ctx context.Context, req *model.Request) error

	// Empty reports whether no pending request remains.
	Empty(ctx context.Context) (bool, error)

	// NextRequests waits for the throttle window, then claims up to
	// batchSize of the oldest pending requests. A non-positive batchSize
	// uses the configured default.
	//
	// When ctx has a deadline that expires before the window opens, it
	// returns context.DeadlineExceeded at once without claiming anything.
	// Durable schedulers may return a partial batch together with a
	// *storage.SkippedError naming records that could not be decoded.
	NextRequests(ctx context.Context, batchSize int) ([]*model.Request, error)

	// ForceNextRequests claims like NextRequests without waiting.
	ForceNextRequests(ctx context.Context, batchSize int) ([]*model.Request, error)

	// SetDelay changes the minimum spacing between throttled claims.
	SetDelay(d time.Duration) Scheduler

	// SetNamespace binds the scheduler to a queue partition.
	SetNamespace(ctx context.Context, name string) error

	// Namespace returns the sanitized partition name.
	Namespace() string

	// Purge removes every request of the current namespace.
	Purge(ctx context.Context) error

	// Stats summarizes the current namespace.
	Stats(ctx context.Context) (model.QueueStats, error)
}

// options holds settings shared by both implementations.
type options struct {
	clock     clock.Clock
	delay     time.Duration
	batchSize int
	logger    *slog.Logger
}

// Option configures a Scheduler.
type Option func(*options)

// WithClock sets the time source used by the throttle.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithDelay sets the initial throttle delay.
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		o.delay = d
	}
}

// WithBatchSize sets the batch used when a claim passes a non-positive size.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) options {
	o := options{
		clock:     clock.NewReal(),
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.delay < 0 {
		o.delay = 0
	}
	return o
}

// resolveBatch applies the default to non-positive sizes.
func resolveBatch(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}
