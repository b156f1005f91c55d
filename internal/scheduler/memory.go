package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/nao1215/spiderq/internal/model"
	"github.com/nao1215/spiderq/internal/storage"
)

// MemoryBackend is reported in Stats by MemoryScheduler.
const MemoryBackend = "memory"

// MemoryScheduler is an in-process Scheduler. It keeps every scheduled
// request, duplicates included, and nothing survives the process.
type MemoryScheduler struct {
	mu        sync.Mutex
	pending   []*model.Request
	namespace string
	batchSize int
	throttle  *throttle
}

var _ Scheduler = (*MemoryScheduler)(nil)

// NewMemoryScheduler returns an empty MemoryScheduler.
func NewMemoryScheduler(opts ...Option) *MemoryScheduler {
	o := newOptions(opts)
	return &MemoryScheduler{
		namespace: storage.DefaultNamespace,
		batchSize: o.batchSize,
		throttle:  newThrottle(o.clock, o.delay),
	}
}

// SetBatchSize sets the batch used when a claim passes a non-positive size.
// Non-positive values are ignored.
func (m *MemoryScheduler) SetBatchSize(n int) *MemoryScheduler {
	if n > 0 {
		m.mu.Lock()
		m.batchSize = n
		m.mu.Unlock()
	}
	return m
}

// Schedule appends req.
func (m *MemoryScheduler) Schedule(_ context.Context, req *model.Request) error {
	if req == nil {
		return ErrNilRequest
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, req)
	return nil
}

// Empty reports whether nothing is pending.
func (m *MemoryScheduler) Empty(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending) == 0, nil
}

// NextRequests waits for the throttle window and claims a batch.
func (m *MemoryScheduler) NextRequests(ctx context.Context, batchSize int) ([]*model.Request, error) {
	if err := m.throttle.wait(ctx); err != nil {
		return nil, err
	}
	return m.claim(batchSize), nil
}

// ForceNextRequests claims a batch without waiting.
func (m *MemoryScheduler) ForceNextRequests(_ context.Context, batchSize int) ([]*model.Request, error) {
	return m.claim(batchSize), nil
}

func (m *MemoryScheduler) claim(batchSize int) []*model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := min(resolveBatch(batchSize, m.batchSize), len(m.pending))
	batch := make([]*model.Request, n)
	copy(batch, m.pending[:n])

	// drop references so claimed requests can be collected
	clear(m.pending[:n])
	m.pending = m.pending[n:]
	return batch
}

// SetDelay changes the throttle delay.
func (m *MemoryScheduler) SetDelay(d time.Duration) Scheduler {
	m.throttle.setDelay(d)
	return m
}

// SetNamespace records the sanitized name. Pending requests are kept.
func (m *MemoryScheduler) SetNamespace(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespace = storage.SanitizeNamespace(name)
	return nil
}

// Namespace returns the sanitized namespace.
func (m *MemoryScheduler) Namespace() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.namespace
}

// Purge drops every pending request.
func (m *MemoryScheduler) Purge(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	return nil
}

// Stats reports the pending count. Claimed requests are not tracked.
func (m *MemoryScheduler) Stats(_ context.Context) (model.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.QueueStats{
		Namespace: m.namespace,
		Backend:   MemoryBackend,
		Pending:   len(m.pending),
	}, nil
}
