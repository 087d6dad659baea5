// Package debounce coalesces bursts of requests into a single trailing-edge call.
package debounce

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer delivers only the most recent submitted value, once the window has
// passed without a newer submission. Every submission restarts the window and
// there is no maximum wait: a steady stream of submissions defers the call
// indefinitely. Superseded values are dropped, never queued.
type Debouncer[T any] struct {
	clock  clockwork.Clock
	window time.Duration
	fn     func(T)

	mu      sync.Mutex
	timer   clockwork.Timer
	gen     uint64
	pending bool
	latest  T
}

// New creates a Debouncer that calls fn with the latest value after window of quiescence.
func New[T any](clock clockwork.Clock, window time.Duration, fn func(T)) *Debouncer[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Debouncer[T]{clock: clock, window: window, fn: fn}
}

// Submit records v as the latest value and restarts the window.
func (d *Debouncer[T]) Submit(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	d.latest = v
	d.pending = true

	gen := d.gen
	d.timer = d.clock.AfterFunc(d.window, func() { d.fire(gen) })
}

// Cancel drops any pending value. Returns true if a call was pending.
func (d *Debouncer[T]) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	was := d.pending
	d.stopLocked()
	d.gen++
	d.pending = false
	var zero T
	d.latest = zero
	return was
}

// Pending reports whether a call is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer[T]) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// fire runs fn if gen is still the newest submission. A timer that was stopped
// too late to prevent its callback is filtered out here.
func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	v := d.latest
	d.pending = false
	d.timer = nil
	var zero T
	d.latest = zero
	d.mu.Unlock()

	d.fn(v)
}
