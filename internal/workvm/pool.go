// Package workvm implements the thread & work pool described in spec.md
// §4.10: acquiring an isolated "worker VM" per queued item, marshalling
// arguments and results by copy across the boundary, and delivering the
// after-work callback back onto the submitter's loop in completion order
// (spec.md §5: "not submission order").
//
// No foreign scripting VM exists anywhere in the reference corpus, so a
// worker here is a goroutine that executes a plain Go function with no
// captured script-visible state — the closest honest analogue to "dumping"
// a function body to a byte string and running it in a fresh interpreter.
package workvm

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/behrlich/uvbridge/internal/value"
)

// WorkFunc is a thread-pool work item body.
type WorkFunc func(args []any) ([]any, error)

// Worker identifies which isolated worker VM ran an item, for metrics only
// — workers share no state with each other.
type Worker struct {
	ID int
}

// Pool bounds how many work items run concurrently, sized from
// UV_THREADPOOL_SIZE.
type Pool struct {
	size int
	sem  *semaphore.Weighted
	next atomic.Int64
}

// NewPool constructs a Pool with the given worker count (clamped to at
// least 1).
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: size, sem: semaphore.NewWeighted(int64(size))}
}

// Size reports the configured worker count.
func (p *Pool) Size() int { return p.size }

// Item is one queued submission.
type Item struct {
	Fn   WorkFunc
	Args []any
	// After is invoked with the unmarshalled results, or a non-nil err if
	// the worker panicked or errored (spec.md §7's WORKER error class —
	// "never terminates the process").
	After func(results []any, err error)
	// Post delivers the After call onto the submitter's own loop, so it
	// runs on the loop's single dispatch goroutine rather than the worker
	// goroutine.
	Post func(fn func())
}

// Submit marshals item.Args (rejecting unsupported types or more than
// value.MaxArgs up front, spec.md §4.10), then runs item.Fn on a worker
// goroutine bounded by the pool's semaphore.
func (p *Pool) Submit(item Item) error {
	margs, err := value.MarshalArgs(item.Args)
	if err != nil {
		return err
	}
	workerID := int(p.next.Add(1) % int64(p.size))

	go func() {
		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		results, workErr := run(Worker{ID: workerID}, item.Fn, value.UnmarshalArgs(margs))

		var mres []value.Value
		if workErr == nil {
			mres, workErr = value.MarshalArgs(results)
		}
		post := item.Post
		after := item.After
		if post == nil || after == nil {
			return
		}
		if workErr != nil {
			post(func() { after(nil, workErr) })
			return
		}
		post(func() { after(value.UnmarshalArgs(mres), nil) })
	}()
	return nil
}

// run invokes fn, converting a panic into a WORKER-class error so a bad
// work item never brings down the process (spec.md §7).
func run(w Worker, fn WorkFunc, args []any) (results []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workvm: worker %d panicked: %v", w.ID, r)
		}
	}()
	return fn(args)
}
