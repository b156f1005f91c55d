package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/storage"
)

// DurableScheduler is a Scheduler backed by a storage.Storage.
//
// A claim that hits undecodable records returns the decoded requests
// together with a *storage.SkippedError; check it with storage.IsSkipped.
type DurableScheduler struct {
	store     storage.Storage
	batchSize int
	throttle  *throttle
	logger    *slog.Logger
}

var _ Scheduler = (*DurableScheduler)(nil)

// NewDurableScheduler wraps store. The store stays owned by the caller,
// which must Close it.
func NewDurableScheduler(store storage.Storage, opts ...Option) *DurableScheduler {
	o := newOptions(opts)
	return &DurableScheduler{
		store:     store,
		batchSize: o.batchSize,
		throttle:  newThrottle(o.clock, o.delay),
		logger:    o.logger,
	}
}

// Schedule stores req under its logical key. A duplicate is dropped silently.
func (d *DurableScheduler) Schedule(ctx context.Context, req *model.Request) error {
	if req == nil {
		return ErrNilRequest
	}

	key := req.Key()
	inserted, err := d.store.PushItem(ctx, req, key)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", req.URL, err)
	}
	if !inserted {
		d.logger.Debug("duplicate request dropped",
			"namespace", d.store.Namespace(),
			"key", key,
		)
	}
	return nil
}

// Empty reports whether no pending record remains.
func (d *DurableScheduler) Empty(ctx context.Context) (bool, error) {
	return d.store.IsEmpty(ctx)
}

// NextRequests waits for the throttle window and claims a batch.
func (d *DurableScheduler) NextRequests(ctx context.Context, batchSize int) ([]*model.Request, error) {
	if err := d.throttle.wait(ctx); err != nil {
		return nil, err
	}
	return d.claim(ctx, batchSize)
}

// ForceNextRequests claims a batch without waiting.
func (d *DurableScheduler) ForceNextRequests(ctx context.Context, batchSize int) ([]*model.Request, error) {
	return d.claim(ctx, batchSize)
}

func (d *DurableScheduler) claim(ctx context.Context, batchSize int) ([]*model.Request, error) {
	n := resolveBatch(batchSize, d.batchSize)
	reqs, err := d.store.PullItems(ctx, n)
	if err != nil && !storage.IsSkipped(err) {
		return nil, fmt.Errorf("failed to claim requests: %w", err)
	}

	d.logger.Debug("claimed requests",
		"namespace", d.store.Namespace(),
		"requested", n,
		"claimed", len(reqs),
	)
	return reqs, err
}

// SetDelay changes the throttle delay.
func (d *DurableScheduler) SetDelay(delay time.Duration) Scheduler {
	d.throttle.setDelay(delay)
	return d
}

// SetNamespace rebinds the store to another partition.
func (d *DurableScheduler) SetNamespace(ctx context.Context, name string) error {
	if err := d.store.SetNamespace(ctx, name); err != nil {
		return fmt.Errorf("failed to set namespace: %w", err)
	}
	return nil
}

// Namespace returns the sanitized namespace.
func (d *DurableScheduler) Namespace() string {
	return d.store.Namespace()
}

// Purge deletes every record of the current namespace.
func (d *DurableScheduler) Purge(ctx context.Context) error {
	if err := d.store.Purge(ctx); err != nil {
		return fmt.Errorf("failed to purge namespace %s: %w", d.store.Namespace(), err)
	}
	d.logger.Info("namespace purged", "namespace", d.store.Namespace())
	return nil
}

// Stats summarizes the current namespace.
func (d *DurableScheduler) Stats(ctx context.Context) (model.QueueStats, error) {
	return d.store.Stats(ctx)
}
