package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReal(t *testing.T) {
	t.Parallel()

	t.Run("SleepUntil in the past returns immediately", func(t *testing.T) {
		t.Parallel()

		c := NewReal()
		start := time.Now()
		if err := c.SleepUntil(context.Background(), start.Add(-time.Hour)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("expected no wait, waited %v", elapsed)
		}
	})

	t.Run("Sleep waits at least the duration", func(t *testing.T) {
		t.Parallel()

		c := NewReal()
		start := time.Now()
		if err := c.Sleep(context.Background(), 20*time.Millisecond); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
			t.Errorf("expected at least 20ms, got %v", elapsed)
		}
	})

	t.Run("Sleep returns on cancellation", func(t *testing.T) {
		t.Parallel()

		c := NewReal()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := c.Sleep(ctx, time.Hour)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestFake(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("SleepUntil advances to the target", func(t *testing.T) {
		t.Parallel()

		c := NewFake(start)
		target := start.Add(5 * time.Second)
		if err := c.SleepUntil(context.Background(), target); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !c.Now().Equal(target) {
			t.Errorf("expected now %v, got %v", target, c.Now())
		}
		if got := c.Sleeps(); len(got) != 1 || got[0] != 5*time.Second {
			t.Errorf("expected one 5s sleep, got %v", got)
		}
	})

	t.Run("SleepUntil in the past records nothing", func(t *testing.T) {
		t.Parallel()

		c := NewFake(start)
		if err := c.SleepUntil(context.Background(), start.Add(-time.Second)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !c.Now().Equal(start) {
			t.Errorf("time should not move, got %v", c.Now())
		}
		if len(c.Sleeps()) != 0 {
			t.Errorf("expected no sleeps, got %v", c.Sleeps())
		}
	})

	t.Run("Advance moves time without sleeping", func(t *testing.T) {
		t.Parallel()

		c := NewFake(start)
		c.Advance(time.Minute)
		if !c.Now().Equal(start.Add(time.Minute)) {
			t.Errorf("unexpected now %v", c.Now())
		}
		if len(c.Sleeps()) != 0 {
			t.Error("Advance must not record sleeps")
		}
	})

	t.Run("cancelled context is reported", func(t *testing.T) {
		t.Parallel()

		c := NewFake(start)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := c.Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
