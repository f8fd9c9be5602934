// Package debounce provides a cancellable scoped-delay timer.
package debounce

import (
	"sync"
	"time"
)

// Timer runs at most one pending callback. Scheduling a new callback replaces
// the pending one, so a burst of calls closer together than the delay fires
// only the last.
type Timer struct {
	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// New creates an idle Timer
func New() *Timer {
	return &Timer{}
}

// Schedule cancels any pending callback and arms fn to run after delay.
// It returns false if the timer has been stopped.
func (t *Timer) Schedule(delay time.Duration, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return false
	}

	t.cancelLocked()
	t.seq++
	seq := t.seq
	t.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		// A callback that lost the race with Schedule/Cancel sees a newer seq.
		if t.seq != seq || t.stopped {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.mu.Unlock()
		fn()
	})
	return true
}

// Cancel discards the pending callback, if any, without invoking it
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

// Stop cancels the pending callback and rejects future schedules
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.stopped = true
}

// Pending reports whether a callback is armed
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// cancelLocked stops the armed timer (must hold lock)
func (t *Timer) cancelLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.seq++
}

// Value debounces a stream of values, delivering only the latest one once the
// stream has been quiet for the configured delay.
type Value[T any] struct {
	timer   *Timer
	delay   time.Duration
	deliver func(T)
}

// NewValue creates a Value that calls deliver with the settled value
func NewValue[T any](delay time.Duration, deliver func(T)) *Value[T] {
	return &Value[T]{
		timer:   New(),
		delay:   delay,
		deliver: deliver,
	}
}

// Set schedules delivery of v, replacing any value still pending
func (v *Value[T]) Set(val T) bool {
	return v.timer.Schedule(v.delay, func() {
		v.deliver(val)
	})
}

// Cancel drops the pending value
func (v *Value[T]) Cancel() {
	v.timer.Cancel()
}

// Stop drops the pending value and rejects future values
func (v *Value[T]) Stop() {
	v.timer.Stop()
}

// Pending reports whether a value is waiting to be delivered
func (v *Value[T]) Pending() bool {
	return v.timer.Pending()
}
