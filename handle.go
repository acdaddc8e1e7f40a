package uvbridge

import (
	"sync"

	"github.com/behrlich/uvbridge/internal/registry"
)

// Kind identifies a handle's concrete type, replacing the source's
// metatable-based type check (spec.md §4.2, §9: "prefer explicit typed
// slots over dynamic name lookup").
type Kind string

const (
	KindTimer    Kind = "timer"
	KindIdle     Kind = "idle"
	KindPrepare  Kind = "prepare"
	KindCheck    Kind = "check"
	KindSignal   Kind = "signal"
	KindPoll     Kind = "poll"
	KindAsync    Kind = "async"
	KindTCP      Kind = "tcp"
	KindPipe     Kind = "pipe"
	KindTTY      Kind = "tty"
	KindUDP      Kind = "udp"
	KindProcess  Kind = "process"
	KindFSEvent  Kind = "fs_event"
	KindFSPoll   Kind = "fs_poll"
)

// Handle is the common record embedded by every concrete handle type
// (spec.md §3's "Handle record"). It owns the registry pin, the active/
// closing/closed bookkeeping, and the CLOSED callback slot; concrete types
// add their own typed event slots on top.
type Handle struct {
	mu sync.Mutex

	id   string
	kind Kind
	ctx  *Context

	active  bool
	closing bool
	closed  bool

	refd     bool
	onClosed func()
}

func newHandle(ctx *Context, kind Kind) Handle {
	return Handle{id: registry.NewID(), kind: kind, ctx: ctx, refd: true}
}

// GetType returns the handle's kind (spec.md §4.2's get_type).
func (h *Handle) GetType() Kind { return h.kind }

// IsActive reports whether the handle currently contributes to
// loop_alive() accounting (spec.md §3).
func (h *Handle) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// IsClosing reports whether Close has been called on this handle.
func (h *Handle) IsClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}

// HasRef reports whether the handle is currently referenced (contributing
// to loop_alive when active); Unref lets a caller keep a handle open
// without it keeping the loop running on its own.
func (h *Handle) HasRef() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refd
}

// Ref restores the default "this handle keeps the loop alive" behavior.
func (h *Handle) Ref() {
	h.mu.Lock()
	wasActive, wasRefd := h.active, h.refd
	h.refd = true
	h.mu.Unlock()
	if wasActive && !wasRefd {
		h.ctx.loop.IncActive()
	}
}

// Unref excludes the handle from loop_alive() accounting while leaving it
// otherwise operating normally.
func (h *Handle) Unref() {
	h.mu.Lock()
	wasActive, wasRefd := h.active, h.refd
	h.refd = false
	h.mu.Unlock()
	if wasActive && wasRefd {
		h.ctx.loop.DecActive()
	}
}

// markActive/markInactive adjust the shared loop-alive counter exactly
// once per transition, honoring the ref/unref flag (spec.md §3's
// "pinned iff active ... ").
func (h *Handle) markActive() {
	h.mu.Lock()
	already := h.active
	h.active = true
	refd := h.refd
	h.mu.Unlock()
	if !already && refd {
		h.ctx.loop.IncActive()
	}
}

func (h *Handle) markInactive() {
	h.mu.Lock()
	was := h.active
	h.active = false
	refd := h.refd
	h.mu.Unlock()
	if was && refd {
		h.ctx.loop.DecActive()
	}
}

// beginClose marks the handle as closing, returning an STATE error if it
// already was (spec.md §4.2: "fatal caller error, distinct from
// idempotent").
func (h *Handle) beginClose(onClosed func()) error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return NewStateError("close", "handle is already closing")
	}
	h.closing = true
	h.onClosed = onClosed
	h.mu.Unlock()
	return nil
}

// finishClose fires the CLOSED callback exactly once (spec.md §4.2, §8's
// close-ordering invariant). Every Close unpins the handle from the
// registry before calling it.
func (h *Handle) finishClose() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	cb := h.onClosed
	h.mu.Unlock()

	h.markInactive()
	if cb != nil {
		h.ctx.dispatch(cb)
	}
}

func (h *Handle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
