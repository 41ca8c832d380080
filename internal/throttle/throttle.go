// Package throttle provides the process-wide minimum-interval gate applied
// before every panel call.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmylchreest/xtreamer/internal/metrics"
)

// DefaultInterval is the minimum spacing between two panel calls.
const DefaultInterval = 500 * time.Millisecond

// Throttle grants call slots at most once per interval. The first slot is
// granted immediately; later callers reserve the next free slot and sleep
// until it, so bursts serialize to the interval cadence. It is safe for
// concurrent use and meant to be shared by every client in the process.
type Throttle struct {
	interval time.Duration
	limiter  *rate.Limiter
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	last time.Time
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithClock replaces time.Now and the context-aware sleep. Used by tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Throttle) {
		t.now = now
		t.sleep = sleep
	}
}

// New creates a throttle. A non-positive interval disables spacing.
func New(interval time.Duration, opts ...Option) *Throttle {
	t := &Throttle{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	t.limiter = rate.NewLimiter(limit, 1)
	return t
}

// Interval returns the configured spacing.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Wait blocks until the caller's slot arrives or ctx is done. On
// cancellation the reserved slot is handed back.
func (t *Throttle) Wait(ctx context.Context) error {
	_, err := t.Acquire(ctx)
	return err
}

// Acquire is Wait that also returns the granted slot time.
func (t *Throttle) Acquire(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	t.mu.Lock()
	now := t.now()
	r := t.limiter.ReserveN(now, 1)
	if !r.OK() {
		t.mu.Unlock()
		// Only possible with burst 0, which New never configures.
		return time.Time{}, context.DeadlineExceeded
	}

	delay := r.DelayFrom(now)
	slot := now.Add(delay)
	// The limiter works in float seconds; pin the slot to the previous one
	// plus the interval so rounding can never undershoot it.
	prev := t.last
	if !prev.IsZero() && t.interval > 0 {
		if floor := prev.Add(t.interval); slot.Before(floor) {
			delay += floor.Sub(slot)
			slot = floor
		}
	}
	t.last = slot
	t.mu.Unlock()

	if delay > 0 {
		if err := t.sleep(ctx, delay); err != nil {
			t.mu.Lock()
			r.CancelAt(t.now())
			if t.last.Equal(slot) {
				t.last = prev
			}
			t.mu.Unlock()
			return time.Time{}, err
		}
	}
	metrics.ObserveThrottleWait(delay)

	return slot, nil
}

// Last returns the most recently reserved slot, zero if none.
func (t *Throttle) Last() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
