// Package debounce coalesces bursts of calls into one trailing call.
package debounce

import (
	"sync"
	"time"
)

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped
// by StdAfterFunc; tests pass a fake clock instead.
type AfterFunc func(d time.Duration, f func()) Timer

// StdAfterFunc schedules on the real clock.
func StdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer runs fn once the delay has passed without another Trigger.
// At most one timer is in flight.
type Debouncer struct {
	delay time.Duration
	fn    func()
	after AfterFunc

	mu    sync.Mutex
	timer Timer
	gen   uint64
}

// New creates a debouncer calling fn. A nil after uses the real clock.
func New(delay time.Duration, fn func(), after AfterFunc) *Debouncer {
	if after == nil {
		after = StdAfterFunc
	}
	return &Debouncer{delay: delay, fn: fn, after: after}
}

// Trigger (re)starts the delay window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	gen := d.gen
	d.timer = d.after(d.delay, func() { d.fire(gen) })
}

// Cancel drops a pending call. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

// Flush runs a pending call immediately. It reports whether one ran.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	pending := d.stopLocked()
	d.mu.Unlock()
	if pending {
		d.fn()
	}
	return pending
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) stopLocked() bool {
	d.gen++
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// fire ignores callbacks of timers that were superseded after their Stop
// lost the race against expiry.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.gen++
	d.mu.Unlock()
	d.fn()
}
