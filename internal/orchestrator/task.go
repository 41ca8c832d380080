// Package orchestrator holds the view-state owners that sit between UI
// intents and the panel client. Each publishes immutable snapshots through a
// state.Value and runs at most one load at a time.
package orchestrator

import (
	"context"
	"sync"
)

// commitFunc applies fn only if the calling task is still current and
// reports whether it did. fn runs under the slot lock and must not block.
type commitFunc func(fn func()) bool

// taskSlot runs one task at a time. Starting a task cancels the previous
// one and bumps the generation; a superseded task can no longer commit, so
// its late result is never published.
type taskSlot struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc

	base     context.Context
	stopBase context.CancelFunc
	wg       sync.WaitGroup
}

func newTaskSlot() *taskSlot {
	base, stop := context.WithCancel(context.Background())
	return &taskSlot{base: base, stopBase: stop}
}

// closedChan is returned by intents that completed synchronously.
func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// preemptLocked cancels the running task and returns the new generation.
func (s *taskSlot) preemptLocked() uint64 {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	return s.gen
}

// start cancels the running task and runs fn in a new goroutine. The
// returned channel is closed when fn returns.
func (s *taskSlot) start(fn func(ctx context.Context, commit commitFunc)) <-chan struct{} {
	s.mu.Lock()
	if s.base.Err() != nil {
		s.mu.Unlock()
		return closedChan()
	}
	gen := s.preemptLocked()
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	commit := func(apply func()) bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen || ctx.Err() != nil {
			return false
		}
		apply()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer cancel()
		fn(ctx, commit)
	}()
	return done
}

// now supersedes the running task and applies fn synchronously, for intents
// served from local data.
func (s *taskSlot) now(apply func()) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base.Err() != nil {
		return closedChan()
	}
	s.preemptLocked()
	apply()
	return closedChan()
}

// close cancels the running task and waits for it to return.
func (s *taskSlot) close() {
	s.mu.Lock()
	s.preemptLocked()
	s.stopBase()
	s.mu.Unlock()
	s.wg.Wait()
}
