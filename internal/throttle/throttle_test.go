package throttle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func TestThrottle_SlotsAreSpaced(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	th := New(DefaultInterval, WithClock(clock.Now, clock.Sleep))

	var slots []time.Time
	for i := 0; i < 4; i++ {
		slot, err := th.Acquire(context.Background())
		require.NoError(t, err)
		slots = append(slots, slot)
	}

	assert.Equal(t, clock.now.Add(-3*DefaultInterval), slots[0], "first call is immediate")
	for i := 1; i < len(slots); i++ {
		assert.GreaterOrEqual(t, slots[i].Sub(slots[i-1]), DefaultInterval)
	}
	assert.Equal(t, slots[3], th.Last())
}

func TestThrottle_IdleCallerIsNotDelayed(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	th := New(DefaultInterval, WithClock(clock.Now, clock.Sleep))

	first, err := th.Acquire(context.Background())
	require.NoError(t, err)

	clock.mu.Lock()
	clock.now = clock.now.Add(2 * time.Second)
	clock.mu.Unlock()

	second, err := th.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Add(2*time.Second), second)
}

func TestThrottle_BackToBackRealTime(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	th := New(DefaultInterval)
	ctx := context.Background()

	require.NoError(t, th.Wait(ctx))
	first := th.Last()
	start := time.Now()
	require.NoError(t, th.Wait(ctx))
	second := th.Last()

	assert.GreaterOrEqual(t, second.Sub(first), DefaultInterval)
	assert.GreaterOrEqual(t, time.Since(start), DefaultInterval-50*time.Millisecond)
}

func TestThrottle_ConcurrentCallersSerialize(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	th := New(100*time.Millisecond, WithClock(clock.Now, func(ctx context.Context, d time.Duration) error {
		return nil
	}))

	var (
		mu    sync.Mutex
		slots = map[time.Time]bool{}
		wg    sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := th.Acquire(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			slots[slot] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, slots, 10, "every caller receives a distinct slot")
	assert.Equal(t, clock.now.Add(900*time.Millisecond), th.Last())
}

func TestThrottle_CancelWhileWaiting(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	th := New(time.Hour)
	require.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := th.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestThrottle_ZeroIntervalDisablesSpacing(t *testing.T) {
	th := New(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, th.Wait(context.Background()))
	}
}
