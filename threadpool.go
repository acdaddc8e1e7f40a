package uvbridge

import (
	"sync"

	"github.com/behrlich/uvbridge/internal/workvm"
)

// Work is the work-context userdata from spec.md §4.10: new_work(fn,
// after_cb) returns one of these, and queue(args...) submits an
// invocation to the Context's thread pool.
type Work struct {
	ctx   *Context
	fn    workvm.WorkFunc
	after func(results []any, err error)
}

// NewWork dumps fn (in Go terms: records it as the work body with no
// captured script-visible state, per spec.md §9's "reject non-dumpable
// callables") and records afterCb as the after-work callback.
func NewWork(ctx *Context, fn func(args []any) ([]any, error), afterCb func(results []any, err error)) *Work {
	return &Work{ctx: ctx, fn: fn, after: afterCb}
}

// Queue marshals args, submits the item to the Context's thread pool, and
// returns true on successful submission (spec.md §4.10).
func (w *Work) Queue(args ...any) (bool, error) {
	start := w.ctx.Now()
	err := w.ctx.pool.Submit(workvm.Item{
		Fn:   w.fn,
		Args: args,
		After: func(results []any, err error) {
			w.ctx.metrics.RecordWorkItem(uint64(w.ctx.Now().Sub(start)), err)
			w.ctx.dispatch(func() { w.after(results, err) })
		},
		Post: w.ctx.loop.PostEvent,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Thread is the standalone-worker-thread handle from spec.md §4.10's
// new_thread.
type Thread struct {
	done chan struct{}
	id   uint64
}

var threadIDs struct {
	mu   sync.Mutex
	next uint64
}

func nextThreadID() uint64 {
	threadIDs.mu.Lock()
	defer threadIDs.mu.Unlock()
	threadIDs.next++
	return threadIDs.next
}

// NewThread launches fn(args...) on a standalone goroutine (spec.md
// §4.10's new_thread). It takes no options; there is no stack_size
// setting.
func NewThread(fn func(args ...any), args ...any) *Thread {
	t := &Thread{done: make(chan struct{}), id: nextThreadID()}
	go func() {
		defer close(t.done)
		fn(args...)
	}()
	return t
}

// Join blocks until the thread's function returns.
func (t *Thread) Join() { <-t.done }

// Equal reports whether two Thread handles refer to the same goroutine.
func (t *Thread) Equal(other *Thread) bool { return other != nil && t.id == other.id }

// Sem is the counting semaphore from spec.md §4.10's new_sem: a
// free-running count that Post() increments and Wait()/TryWait() decrement,
// blocking on empty rather than ever rejecting a Post.
type Sem struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

// NewSem constructs a semaphore with n initial permits.
func NewSem(n int) *Sem {
	s := &Sem{}
	s.cond = sync.NewCond(&s.mu)
	if n > 0 {
		s.count = n
	}
	return s
}

// Post increments the count and wakes one waiter, if any.
func (s *Sem) Post() {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	s.cond.Signal()
}

// Wait blocks until a permit is available, then consumes it.
func (s *Sem) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.count == 0 {
		s.cond.Wait()
	}
	s.count--
}

// TryWait attempts to consume a permit without blocking, returning whether
// it succeeded.
func (s *Sem) TryWait() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return false
	}
	s.count--
	return true
}
