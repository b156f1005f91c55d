package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/storage"
)

// instrumented records metrics around every call of the wrapped Storage.
type instrumented struct {
	storage.Storage
	m *Metrics
}

// Instrument wraps s so every operation is counted in m.
// A nil m returns s unchanged.
func Instrument(s storage.Storage, m *Metrics) storage.Storage {
	if m == nil {
		return s
	}
	return &instrumented{Storage: s, m: m}
}

func (i *instrumented) fail(op string, err error) {
	if err != nil {
		i.m.StorageErrors.WithLabelValues(op).Inc()
	}
}

func (i *instrumented) PushItem(ctx context.Context, req *model.Request, key string) (bool, error) {
	inserted, err := i.Storage.PushItem(ctx, req, key)
	if err != nil {
		i.fail("push", err)
		return inserted, err
	}

	ns := i.Storage.Namespace()
	if inserted {
		i.m.RequestsScheduled.WithLabelValues(ns).Inc()
	} else {
		i.m.RequestsDeduplicated.WithLabelValues(ns).Inc()
	}
	return inserted, nil
}

func (i *instrumented) PullItems(ctx context.Context, batchSize int) ([]*model.Request, error) {
	ns := i.Storage.Namespace()

	start := time.Now()
	reqs, err := i.Storage.PullItems(ctx, batchSize)
	i.m.ClaimDuration.WithLabelValues(ns).Observe(time.Since(start).Seconds())

	i.m.RequestsClaimed.WithLabelValues(ns).Add(float64(len(reqs)))

	var skipped *storage.SkippedError
	switch {
	case errors.As(err, &skipped):
		i.m.RecordsMalformed.WithLabelValues(ns).Add(float64(len(skipped.Records)))
	case err != nil:
		i.fail("pull", err)
	}
	return reqs, err
}

func (i *instrumented) IsEmpty(ctx context.Context) (bool, error) {
	empty, err := i.Storage.IsEmpty(ctx)
	i.fail("empty", err)
	return empty, err
}

func (i *instrumented) Purge(ctx context.Context) error {
	err := i.Storage.Purge(ctx)
	if err != nil {
		i.fail("purge", err)
		return err
	}
	i.m.Purges.WithLabelValues(i.Storage.Namespace()).Inc()
	return nil
}

func (i *instrumented) Stats(ctx context.Context) (model.QueueStats, error) {
	stats, err := i.Storage.Stats(ctx)
	i.fail("stats", err)
	return stats, err
}

func (i *instrumented) SetNamespace(ctx context.Context, name string) error {
	err := i.Storage.SetNamespace(ctx, name)
	i.fail("namespace", err)
	return err
}
