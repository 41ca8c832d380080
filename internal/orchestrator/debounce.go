package orchestrator

import (
	"sync"
	"time"
)

// DefaultSearchDebounce is the quiet period used for search-as-you-type.
const DefaultSearchDebounce = 500 * time.Millisecond

// Debouncer runs the most recent call once no further call arrived within
// its delay.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	stopped bool
}

// NewDebouncer creates a debouncer. A non-positive delay uses
// DefaultSearchDebounce.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultSearchDebounce
	}
	return &Debouncer{delay: delay}
}

// Call schedules fn, replacing any pending call.
func (d *Debouncer) Call(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, fn)
}

// Flush runs the pending call now, on the caller's goroutine, unless its
// timer already fired. It reports whether a call ran.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	fn := d.pending
	fired := d.timer == nil || !d.timer.Stop()
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	if fired || fn == nil {
		return false
	}
	fn()
	return true
}

// Stop drops the pending call. Later calls are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}
