package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docsync/internal/testutil"
)

func TestPoll_DoneImmediatelyDoesNotSleep(t *testing.T) {
	clock := testutil.NewAutoClock(time.Time{})

	ok, err := Poll(context.Background(), clock, 10*time.Millisecond, time.Second, func() bool { return true })

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, clock.Sleeps())
}

func TestPoll_ChecksEveryInterval(t *testing.T) {
	clock := testutil.NewAutoClock(time.Time{})
	calls := 0

	ok, err := Poll(context.Background(), clock, 10*time.Millisecond, time.Second, func() bool {
		calls++
		return calls == 4
	})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond}, clock.Sleeps())
}

func TestPoll_GivesUpAtMax(t *testing.T) {
	clock := testutil.NewAutoClock(time.Time{})

	ok, err := Poll(context.Background(), clock, 40*time.Millisecond, 100*time.Millisecond, func() bool { return false })

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []time.Duration{40 * time.Millisecond, 40 * time.Millisecond, 20 * time.Millisecond}, clock.Sleeps(),
		"the last sleep is cut to the time left")
	assert.Equal(t, testutil.Epoch.Add(100*time.Millisecond), clock.Now())
}

func TestPoll_ZeroIntervalSleepsOnce(t *testing.T) {
	clock := testutil.NewAutoClock(time.Time{})

	ok, err := Poll(context.Background(), clock, 0, 50*time.Millisecond, func() bool { return false })

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []time.Duration{50 * time.Millisecond}, clock.Sleeps())
}

func TestPoll_ContextEnds(t *testing.T) {
	clock := testutil.NewManualClock(time.Time{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		_, err := Poll(ctx, clock, time.Second, time.Minute, func() bool { return false })
		done <- err
	}()
	clock.BlockUntil(1)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPoll_WakesOnAdvance(t *testing.T) {
	clock := testutil.NewManualClock(time.Time{})
	flag := make(chan struct{})
	done := make(chan bool, 1)

	go func() {
		ok, _ := Poll(context.Background(), clock, 10*time.Millisecond, time.Second, func() bool {
			select {
			case <-flag:
				return true
			default:
				return false
			}
		})
		done <- ok
	}()

	clock.BlockUntil(1)
	close(flag)
	clock.Advance(10 * time.Millisecond)

	assert.True(t, <-done)
}
