package scheduler

import (
	"context"
	"time"
)

// Poll evaluates done immediately and then after every interval of clock
// time until done reports true, max has elapsed, or ctx ends.
//
// Returns true if done was satisfied. Reaching max is not an error: the
// caller proceeds with whatever it has. A non-positive interval is treated
// as max, so Poll never spins.
//
// CRITICAL: Poll is the only suspension point of the debounce. It never
// blocks longer than max, so a trigger burst cannot stall the pipeline.
func Poll(ctx context.Context, clock Clock, interval, max time.Duration, done func() bool) (bool, error) {
	if done() {
		return true, nil
	}
	if interval <= 0 {
		interval = max
	}

	start := clock.Now()
	for {
		remaining := max - clock.Now().Sub(start)
		if remaining <= 0 {
			return false, nil
		}
		if err := clock.Sleep(ctx, min(interval, remaining)); err != nil {
			return false, err
		}
		if done() {
			return true, nil
		}
	}
}
