package uvbridge

import "sync"

// Async is the cross-thread signaling handle from spec.md §4.9: any
// goroutine holding a reference may Send; the loop that owns the handle
// wakes and fires cb. Concurrent sends before delivery coalesce into the
// single latest payload (spec.md §3's "Async argument cell", §9's open
// question on coalescing — this implementation documents an
// at-least-one-eventual-delivery contract, not a per-send guarantee).
type Async struct {
	Handle

	cellMu  sync.Mutex
	pending bool
	payload []any

	cb func(args ...any)
}

// NewAsync constructs an Async handle that fires cb on ctx's loop whenever
// Send delivers a payload.
func NewAsync(ctx *Context, cb func(args ...any)) *Async {
	a := &Async{Handle: newHandle(ctx, KindAsync), cb: cb}
	ctx.registerHandle(&a.Handle)
	a.markActive()
	return a
}

// Send marshals args into the handle's cell, atomically replacing any
// undelivered payload, then wakes the owning loop. Never blocks (spec.md
// §4.9).
func (a *Async) Send(args ...any) error {
	if a.IsClosing() {
		return NewStateError("send", "async handle is closing")
	}
	a.cellMu.Lock()
	a.payload = args
	alreadyPending := a.pending
	a.pending = true
	a.cellMu.Unlock()

	if alreadyPending {
		// A wakeup is already queued; it will pick up the latest payload
		// when it runs, so no second PostEvent is needed (coalescing).
		return nil
	}

	a.ctx.loop.PostEvent(func() {
		a.cellMu.Lock()
		payload := a.payload
		a.pending = false
		a.cellMu.Unlock()
		a.ctx.dispatch(func() { a.cb(payload...) })
	})
	return nil
}

// Close releases the handle. The cell is simply dropped.
func (a *Async) Close(cb func()) error {
	if err := a.beginClose(cb); err != nil {
		return err
	}
	a.ctx.unregisterHandle(&a.Handle)
	a.finishClose()
	return nil
}
