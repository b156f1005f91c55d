package clock

import (
	"context"
	"sync"
	"time"
)

// Clock provides the current time and blocking waits.
// Every wait honours context cancellation and returns ctx.Err() when the
// context ends first.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d.
	Sleep(ctx context.Context, d time.Duration) error

	// SleepUntil blocks until Now() >= t. It returns immediately when t
	// has already passed.
	SleepUntil(ctx context.Context, t time.Time) error
}

// Real is a Clock backed by the time package.
type Real struct{}

// NewReal returns the wall clock.
func NewReal() Real {
	return Real{}
}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// Sleep blocks for d or until ctx is done.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SleepUntil blocks until t or until ctx is done.
func (r Real) SleepUntil(ctx context.Context, t time.Time) error {
	return r.Sleep(ctx, time.Until(t))
}

// Fake is a deterministic Clock for tests.
// Sleeping never blocks: the fake time jumps forward by the requested
// amount and the sleep is recorded.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake time forward by d without recording a sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Sleep advances the fake time by d.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	f.sleeps = append(f.sleeps, d)
	return nil
}

// SleepUntil advances the fake time to t if t is in the future.
func (f *Fake) SleepUntil(ctx context.Context, t time.Time) error {
	return f.Sleep(ctx, t.Sub(f.Now()))
}

// Sleeps returns every sleep recorded so far.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}
