package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/nao1215/spiderq/internal/clock"
)

// throttle spaces claims at least delay apart.
// The window opens at readyAt; each throttled claim pushes it to now+delay.
type throttle struct {
	mu      sync.Mutex
	clock   clock.Clock
	delay   time.Duration
	readyAt time.Time
}

func newThrottle(c clock.Clock, delay time.Duration) *throttle {
	return &throttle{
		clock:   c,
		delay:   delay,
		readyAt: c.Now(),
	}
}

// setDelay changes the spacing applied from the next claim onward.
func (t *throttle) setDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = d
}

// wait blocks until the window opens and then advances it.
// It fails fast with context.DeadlineExceeded when ctx would expire
// before the window opens.
//
// Two clocks meet here. The wait left before the window opens is read from
// the injected clock, while the budget left on ctx is read from the wall
// clock, because context deadlines fire on wall time. Only the two
// durations are compared, never the instants, so a fake clock set to any
// date gives the same decision.
func (t *throttle) wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	remaining := t.readyAt.Sub(t.clock.Now())
	if budget, ok := deadlineBudget(ctx); ok && remaining > 0 && budget < remaining {
		return context.DeadlineExceeded
	}

	if err := t.clock.SleepUntil(ctx, t.readyAt); err != nil {
		return err
	}

	t.readyAt = t.clock.Now().Add(t.delay)
	return nil
}

// deadlineBudget returns how long ctx has before its deadline, measured on
// the wall clock.
func deadlineBudget(ctx context.Context) (time.Duration, bool) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0, false
	}
	return time.Until(deadline), true
}
