// Package debounce provides a cancelable delayed invocation: of a burst of
// calls arriving within the quiet period, only the last one executes.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Debouncer gates calls behind a quiet period. The zero value is not usable;
// build one with New.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	pending func()
	waiter  chan struct{}
}

// New returns a Debouncer with the given quiet period.
func New(delay time.Duration) *Debouncer {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer{delay: delay}
}

// Delay reports the quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger schedules fn after the quiet period, superseding any scheduled call
// or blocked Wait.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.supersedeLocked()
	gen := d.gen
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.gen != gen || d.pending == nil {
			d.mu.Unlock()
			return
		}
		run := d.pending
		d.pending = nil
		d.timer = nil
		d.mu.Unlock()
		run()
	})
}

// Wait blocks for the quiet period and reports whether this caller was the
// last of its burst. A superseded caller returns false immediately.
func (d *Debouncer) Wait(ctx context.Context) (bool, error) {
	d.mu.Lock()
	d.supersedeLocked()
	gen := d.gen
	superseded := make(chan struct{})
	d.waiter = superseded
	d.mu.Unlock()

	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		d.mu.Lock()
		if d.gen == gen {
			d.waiter = nil
		}
		d.mu.Unlock()
		return false, ctx.Err()
	case <-superseded:
		return false, nil
	case <-timer.C:
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.gen != gen {
			return false, nil
		}
		d.waiter = nil
		return true, nil
	}
}

// Cancel drops the scheduled call and releases a blocked Wait. It reports
// whether anything was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	hadPending := d.pending != nil || d.waiter != nil
	d.supersedeLocked()
	return hadPending
}

// Flush runs the scheduled call now, on the caller's goroutine. It reports
// whether a call was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	run := d.pending
	d.supersedeLocked()
	d.mu.Unlock()
	if run == nil {
		return false
	}
	run()
	return true
}

// Pending reports whether a Trigger call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// supersedeLocked invalidates whatever is in flight. Callers hold d.mu.
func (d *Debouncer) supersedeLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
	if d.waiter != nil {
		close(d.waiter)
		d.waiter = nil
	}
}
