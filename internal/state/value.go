// Package state provides an observable value: an immutable snapshot plus a
// set of subscribers notified on every publish.
package state

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Subscription receives snapshots published after it was created, starting
// with the snapshot current at subscription time. Updates is conflated:
// a slow reader only ever sees the latest snapshot, never a stale backlog.
type Subscription[T any] struct {
	ID      string
	Updates <-chan T

	ch     chan T
	cancel func()
}

// Cancel stops delivery and closes Updates. It is idempotent.
func (s *Subscription[T]) Cancel() {
	s.cancel()
}

// Value holds the current snapshot of type T. Snapshots must be treated as
// immutable once published.
type Value[T any] struct {
	mu          sync.Mutex
	current     T
	version     uint64
	subscribers map[string]*Subscription[T]
	closed      bool
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current:     initial,
		subscribers: make(map[string]*Subscription[T]),
	}
}

// Get returns the current snapshot.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Version increments on every publish.
func (v *Value[T]) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

// Set publishes next.
func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.publishLocked(next)
}

// Update derives the next snapshot from the current one under the lock and
// publishes it. fn must not block.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := fn(v.current)
	v.publishLocked(next)
	return next
}

func (v *Value[T]) publishLocked(next T) {
	if v.closed {
		return
	}
	v.current = next
	v.version++
	for _, sub := range v.subscribers {
		offer(sub.ch, next)
	}
}

// offer replaces whatever is pending in a one-slot channel with val.
// Callers hold the Value lock, so there is a single sender per channel.
func offer[T any](ch chan T, val T) {
	select {
	case ch <- val:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- val:
	default:
	}
}

// Subscribe registers a subscriber. The current snapshot is delivered first.
func (v *Value[T]) Subscribe() *Subscription[T] {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan T, 1)
	sub := &Subscription[T]{
		ID:      ulid.Make().String(),
		Updates: ch,
		ch:      ch,
	}

	var once sync.Once
	sub.cancel = func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			if _, ok := v.subscribers[sub.ID]; ok {
				delete(v.subscribers, sub.ID)
				close(ch)
			}
		})
	}

	if v.closed {
		close(ch)
		return sub
	}

	ch <- v.current
	v.subscribers[sub.ID] = sub
	return sub
}

// Subscribers returns the number of active subscriptions.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subscribers)
}

// Close closes every subscription; later publishes are ignored.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	for id, sub := range v.subscribers {
		close(sub.ch)
		delete(v.subscribers, id)
	}
}
