package uvbridge

import "time"

// Timer is the handle type from spec.md §4.6. Start/Stop/Again/SetRepeat/
// GetRepeat are its public operations.
type Timer struct {
	Handle

	repeat time.Duration
	cb     func()
}

// NewTimer constructs an inert Timer handle bound to ctx.
func NewTimer(ctx *Context) *Timer {
	t := &Timer{Handle: newHandle(ctx, KindTimer)}
	ctx.registerHandle(&t.Handle)
	return t
}

// Start arms the timer to fire cb after timeout, then every repeat
// thereafter if repeat > 0 (spec.md §4.6).
func (t *Timer) Start(timeout, repeat time.Duration, cb func()) error {
	if t.IsClosing() {
		return NewStateError("start", "timer is closing")
	}
	t.cb = cb
	t.repeat = repeat
	t.markActive()
	t.ctx.loop.AddTimer(t.id, t.ctx.loop.Now().Add(timeout), repeat, func() {
		t.ctx.metrics.RecordTimerFire()
		t.ctx.dispatch(t.cb)
		if repeat <= 0 {
			t.markInactive()
		}
	})
	return nil
}

// Stop disarms the timer. Safe to call from within the timer's own
// callback (spec.md §4.6).
func (t *Timer) Stop() {
	t.ctx.loop.StopTimer(t.id)
	t.markInactive()
}

// Again restarts the timer using its last repeat interval, as if Stop then
// Start(repeat, repeat, cb) were called (spec.md §4.6's again()). It is an
// error if the timer was never started.
func (t *Timer) Again() error {
	if t.cb == nil {
		return NewStateError("again", "timer was never started")
	}
	t.ctx.loop.StopTimer(t.id)
	return t.Start(t.repeat, t.repeat, t.cb)
}

// SetRepeat changes the interval that Again and GetRepeat use. A timer that
// is already running keeps the repeat interval it was started with.
func (t *Timer) SetRepeat(repeat time.Duration) { t.repeat = repeat }

// GetRepeat reports the current repeat interval.
func (t *Timer) GetRepeat() time.Duration { return t.repeat }

// Close closes the timer handle, invoking cb once unpinned (spec.md
// §4.2).
func (t *Timer) Close(cb func()) error {
	if err := t.beginClose(cb); err != nil {
		return err
	}
	t.ctx.loop.StopTimer(t.id)
	t.ctx.unregisterHandle(&t.Handle)
	t.finishClose()
	return nil
}
