package testutil

import (
	"context"
	"sync"
	"time"
)

// Epoch is the default start time of a ManualClock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ManualClock is a clock whose time only moves when a test moves it.
//
// Two modes:
//   - manual (NewManualClock): Sleep blocks until Advance carries the clock
//     past the wake-up time, or the context ends.
//   - auto (NewAutoClock): Sleep advances the clock by d and returns at
//     once, so a whole debounce loop runs synchronously.
//
// OnSleep, when set, runs after every Sleep registers and before it waits.
// Tests use it to inject triggers at an exact point of a wait.
//
// Thread-safety: All methods are safe for concurrent use.
type ManualClock struct {
	mu       sync.Mutex
	cond     *sync.Cond
	now      time.Time
	auto     bool
	sleepers []*sleeper
	sleeps   []time.Duration

	OnSleep func(d time.Duration)
}

type sleeper struct {
	until time.Time
	wake  chan struct{}
}

// NewManualClock creates a clock at start (Epoch if zero) in manual mode.
func NewManualClock(start time.Time) *ManualClock {
	if start.IsZero() {
		start = Epoch
	}
	c := &ManualClock{now: start}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// NewAutoClock creates a clock at start (Epoch if zero) in auto mode.
func NewAutoClock(start time.Time) *ManualClock {
	c := NewManualClock(start)
	c.auto = true
	return c
}

// Now returns the current fake time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep waits for d of fake time. A non-positive d returns immediately
// without being recorded.
func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	if c.auto {
		c.now = c.now.Add(d)
		hook := c.OnSleep
		c.mu.Unlock()
		if hook != nil {
			hook(d)
		}
		return ctx.Err()
	}
	s := &sleeper{until: c.now.Add(d), wake: make(chan struct{})}
	c.sleepers = append(c.sleepers, s)
	c.cond.Broadcast()
	hook := c.OnSleep
	c.mu.Unlock()

	if hook != nil {
		hook(d)
	}

	select {
	case <-s.wake:
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		c.remove(s)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Advance moves the clock forward and wakes every sleeper that is due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	kept := c.sleepers[:0]
	for _, s := range c.sleepers {
		if !s.until.After(c.now) {
			close(s.wake)
			continue
		}
		kept = append(kept, s)
	}
	c.sleepers = kept
}

// BlockUntil waits until at least n goroutines are blocked in Sleep.
func (c *ManualClock) BlockUntil(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.sleepers) < n {
		c.cond.Wait()
	}
}

// Sleeps returns every duration passed to Sleep so far, in call order.
func (c *ManualClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// remove drops s from the sleeper list. Caller holds mu.
func (c *ManualClock) remove(s *sleeper) {
	for i, x := range c.sleepers {
		if x == s {
			c.sleepers = append(c.sleepers[:i], c.sleepers[i+1:]...)
			return
		}
	}
}
