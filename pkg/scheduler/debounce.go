// Package scheduler provides small scheduling primitives used by the sync
// engine: a trailing-edge debouncer independent of any UI framework.
package scheduler

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into a single invocation of fn
// after a quiescence window. Each Trigger cancels any pending invocation
// and schedules a new one, so fn runs only once the trigger stream has
// been quiet for the full window. The window is read on every trigger, so
// a reconfigured window applies to the next burst without rebuilding the
// debouncer.
type Debouncer struct {
	window func() time.Duration
	fn     func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer that invokes fn after window() of quiet.
func NewDebouncer(window func() time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		window: window,
		fn:     fn,
	}
}

// Trigger schedules (or reschedules) the pending invocation.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window(), d.fn)
}

// Flush runs fn immediately if an invocation is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	pending := d.timer != nil && d.timer.Stop()
	d.timer = nil
	d.mu.Unlock()

	if pending {
		d.fn()
	}
}

// Stop cancels any pending invocation and prevents future triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
