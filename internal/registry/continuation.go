package registry

import "fmt"

// ContinuationKind is the sum-type tag spec.md §4.3 calls for: "a sentinel
// value in the continuation ref distinguishes 'no continuation' from
// 'callable continuation' from 'coroutine continuation'."
type ContinuationKind int

const (
	ContinuationNone ContinuationKind = iota
	ContinuationFunc
	ContinuationCoroutine
)

// Continuation is what a Request or a handle event slot invokes on
// completion: nothing, a plain callback, or a resumed Coroutine (spec.md §9
// Design Notes: "Model a continuation as a sum type {none, callable,
// coroutine}").
type Continuation struct {
	Kind  ContinuationKind
	Func  func(args ...any)
	Coro  *Coroutine
}

// NoContinuation discards whatever arguments a request completes with.
func NoContinuation() Continuation {
	return Continuation{Kind: ContinuationNone}
}

// FuncContinuation wraps a plain callback.
func FuncContinuation(fn func(args ...any)) Continuation {
	return Continuation{Kind: ContinuationFunc, Func: fn}
}

// CoroutineContinuation wraps a coroutine to resume on fulfillment. Per
// spec.md §4.3, c must not currently be running or already finished;
// violating that is a caller bug and Fulfill reports it through onUncaught
// rather than silently dropping the values.
func CoroutineContinuation(c *Coroutine) Continuation {
	return Continuation{Kind: ContinuationCoroutine, Coro: c}
}

// Fulfill delivers args to the continuation. A panicking callback, or a
// coroutine resume that fails, is reported through onUncaught rather than
// propagated — the loop dispatch goroutine must never die from a script
// callback (spec.md §4.1's pcall policy).
func (c Continuation) Fulfill(onUncaught func(error), args ...any) {
	switch c.Kind {
	case ContinuationNone:
		return
	case ContinuationFunc:
		if c.Func == nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				if onUncaught != nil {
					onUncaught(fmt.Errorf("uncaught panic in callback: %v", r))
				}
			}
		}()
		c.Func(args...)
	case ContinuationCoroutine:
		if c.Coro == nil {
			return
		}
		if err := c.Coro.Resume(args...); err != nil && onUncaught != nil {
			onUncaught(err)
		}
	}
}
