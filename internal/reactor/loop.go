// Package reactor implements the single-threaded, multi-phase event loop
// core described in spec.md §4.1 and §5. It owns no handle semantics
// itself (those live in the uvbridge package) — only the phase ordering
// (timers → pending I/O → idle → prepare → poll → check → close), the
// timer wheel, and the single dispatch channel every background goroutine
// (stream readers/writers, udp, fs workers, process waiters, signal
// notifiers, the thread pool, async handles) funnels completions through.
//
// All callbacks registered with a Loop run on whichever goroutine calls
// Run — never concurrently with each other, matching spec.md §5's "All
// script callbacks run on the thread that called run." Background work
// happens on ordinary goroutines that call PostEvent to hand a completion
// back to the loop instead of invoking a callback directly.
package reactor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Mode mirrors spec.md §4.1's run() modes.
type Mode int

const (
	ModeDefault Mode = iota
	ModeOnce
	ModeNoWait
)

// defaultPollCap bounds how long a single poll phase blocks when no timer
// is armed and the caller asked for ModeDefault; without it a loop with
// live handles but no pending timer could block past a Stop() call.
const defaultPollCap = 100 * time.Millisecond

// Loop is the phase-ordered dispatcher. Zero value is not usable; use New.
type Loop struct {
	mu      sync.Mutex
	timers  *timerSet
	idle    []*phaseHandle
	prepare []*phaseHandle
	check   []*phaseHandle

	events chan func()

	activeHandles  atomic.Int64
	activeRequests atomic.Int64

	running       atomic.Bool
	currentMode   atomic.Int32
	stopRequested atomic.Bool

	nowMu sync.RWMutex
	now   time.Time
}

// phaseHandle is an idle/prepare/check registration: a stable id (for
// Remove) plus the callback and whether it's currently armed.
type phaseHandle struct {
	id     string
	fn     func()
	active bool
}

// New constructs an idle Loop.
func New() *Loop {
	l := &Loop{
		timers: newTimerSet(),
		events: make(chan func(), 4096),
	}
	l.now = time.Now()
	return l
}

// PostEvent hands a completion callback to the loop from any goroutine.
// Safe to call concurrently and from the loop goroutine itself. The
// callback runs later, during a poll or pending-I/O phase of Run.
func (l *Loop) PostEvent(fn func()) {
	if fn == nil {
		return
	}
	l.events <- fn
}

// UpdateTime refreshes the cached "now" used by Now() and timer math,
// mirroring spec.md §4.1's update_time().
func (l *Loop) UpdateTime() {
	l.nowMu.Lock()
	l.now = time.Now()
	l.nowMu.Unlock()
}

// Now returns the cached loop time (spec.md §4.1's now()).
func (l *Loop) Now() time.Time {
	l.nowMu.RLock()
	defer l.nowMu.RUnlock()
	return l.now
}

// IncActive/DecActive track the "is some handle active" half of loop_alive
// (spec.md §3: "pinned iff active or has an outstanding request").
func (l *Loop) IncActive()              { l.activeHandles.Add(1) }
func (l *Loop) DecActive()              { l.activeHandles.Add(-1) }
func (l *Loop) IncRequests()            { l.activeRequests.Add(1) }
func (l *Loop) DecRequests()            { l.activeRequests.Add(-1) }

// Alive reports spec.md §4.1's loop_alive(): active handles or outstanding
// requests remain.
func (l *Loop) Alive() bool {
	return l.activeHandles.Load() > 0 || l.activeRequests.Load() > 0
}

// Mode reports the run mode in effect while Run is active, for
// introspection (spec.md §4.1).
func (l *Loop) Mode() (Mode, bool) {
	if !l.running.Load() {
		return 0, false
	}
	return Mode(l.currentMode.Load()), true
}

// Stop requests the current or next Run to return after completing its
// current iteration (spec.md §4.1's stop()).
func (l *Loop) Stop() { l.stopRequested.Store(true) }

// AddTimer arms a timer with id firing fire() at deadline, repeating every
// repeat if repeat > 0.
func (l *Loop) AddTimer(id string, deadline time.Time, repeat time.Duration, fire func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timers.add(id, deadline, repeat, fire)
}

// StopTimer disarms a timer. Safe to call from within the timer's own
// callback or after it has already fired.
func (l *Loop) StopTimer(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timers.remove(id)
}

// AddIdle/RemoveIdle, AddPrepare/RemovePrepare, AddCheck/RemoveCheck
// register phase handles in registration order (spec.md §5).
func (l *Loop) AddIdle(id string, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.idle = append(l.idle, &phaseHandle{id: id, fn: fn, active: true})
}
func (l *Loop) RemoveIdle(id string) { l.removeFrom(&l.idle, id) }

func (l *Loop) AddPrepare(id string, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prepare = append(l.prepare, &phaseHandle{id: id, fn: fn, active: true})
}
func (l *Loop) RemovePrepare(id string) { l.removeFrom(&l.prepare, id) }

func (l *Loop) AddCheck(id string, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.check = append(l.check, &phaseHandle{id: id, fn: fn, active: true})
}
func (l *Loop) RemoveCheck(id string) { l.removeFrom(&l.check, id) }

func (l *Loop) removeFrom(list *[]*phaseHandle, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, h := range *list {
		if h.id == id {
			h.active = false
		}
	}
}

func runPhase(list []*phaseHandle) {
	// Snapshot length: handles registered mid-phase (e.g. from within a
	// callback) run on the next iteration, not this one.
	n := len(list)
	for i := 0; i < n; i++ {
		if list[i].active {
			list[i].fn()
		}
	}
}

func compactPhase(list []*phaseHandle) []*phaseHandle {
	out := list[:0]
	for _, h := range list {
		if h.active {
			out = append(out, h)
		}
	}
	return out
}

// Run drives the loop according to mode until the stopping condition for
// that mode is reached, returning whether more work remains (spec.md
// §4.1's run() return value).
func (l *Loop) Run(mode Mode) bool {
	l.running.Store(true)
	l.currentMode.Store(int32(mode))
	defer l.running.Store(false)
	defer l.stopRequested.Store(false)

	switch mode {
	case ModeNoWait:
		l.runOnce(false)
	case ModeOnce:
		l.runOnce(true)
	default:
		for {
			l.runOnce(true)
			if l.stopRequested.Load() || !l.hasMoreWork() {
				break
			}
		}
	}
	return l.hasMoreWork()
}

func (l *Loop) hasMoreWork() bool {
	return l.Alive() || l.timers.len() > 0
}

// runOnce executes one pass through every phase. block controls whether
// the poll phase waits for an event or merely drains what's already queued.
func (l *Loop) runOnce(block bool) {
	l.UpdateTime()
	now := l.Now()

	l.mu.Lock()
	l.timers.fireExpired(now)
	l.mu.Unlock()

	ranPending := l.drainEvents(false)

	if !ranPending {
		l.mu.Lock()
		idle := append([]*phaseHandle(nil), l.idle...)
		l.mu.Unlock()
		runPhase(idle)
	}

	l.mu.Lock()
	prepare := append([]*phaseHandle(nil), l.prepare...)
	l.mu.Unlock()
	runPhase(prepare)

	timeout := l.pollTimeout(block)
	l.pollOnce(timeout)

	l.mu.Lock()
	check := append([]*phaseHandle(nil), l.check...)
	l.idle = compactPhase(l.idle)
	l.prepare = compactPhase(l.prepare)
	l.check = compactPhase(l.check)
	l.mu.Unlock()
	runPhase(check)
}

// pollTimeout computes spec.md §4.1's backend_timeout(): how long the poll
// phase may block. Zero when not blocking or when work is already queued;
// otherwise the time until the next timer, capped so Stop() and newly
// active handles are still noticed promptly.
func (l *Loop) pollTimeout(block bool) time.Duration {
	if !block {
		return 0
	}
	if len(l.events) > 0 {
		return 0
	}
	l.mu.Lock()
	deadline, ok := l.timers.nextDeadline()
	l.mu.Unlock()
	if !ok {
		if !l.Alive() {
			return 0
		}
		return defaultPollCap
	}
	d := time.Until(deadline)
	if d < 0 {
		return 0
	}
	if d > defaultPollCap {
		return defaultPollCap
	}
	return d
}

// pollOnce is the poll phase: wait up to timeout for at least one event,
// then drain whatever else is immediately available without blocking
// further (spec.md §5: "receives in arrival order" within one phase).
func (l *Loop) pollOnce(timeout time.Duration) {
	if timeout <= 0 {
		l.drainEvents(false)
		return
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case fn := <-l.events:
		fn()
	case <-t.C:
		return
	}
	l.drainEvents(false)
}

// drainEvents runs every event currently queued without blocking. Returns
// whether anything ran.
func (l *Loop) drainEvents(block bool) bool {
	ran := false
	for {
		select {
		case fn := <-l.events:
			fn()
			ran = true
		default:
			return ran
		}
	}
}
