package uvbridge

import "github.com/behrlich/uvbridge/internal/registry"

// Continuation is the public sum type a caller supplies when submitting a
// request: either a plain callback, a coroutine-style resumable, or
// nothing at all (spec.md §3's Request record, §9's "model a continuation
// as a sum type {none, callable, coroutine}").
type Continuation = registry.Continuation

// NoContinuation builds a Continuation that silently discards its
// arguments on fulfillment (spec.md §4.3's fulfill()).
func NoContinuation() Continuation { return registry.NoContinuation() }

// CallbackContinuation builds a Continuation backed by a plain function.
func CallbackContinuation(fn func(args ...any)) Continuation {
	return registry.FuncContinuation(fn)
}

// CoroutineContinuation builds a Continuation backed by a Coroutine.
func CoroutineContinuation(c *registry.Coroutine) Continuation {
	return registry.CoroutineContinuation(c)
}

// NewCoroutine constructs a user-scheduled micro-thread a caller can pass
// to CoroutineContinuation (spec.md §9).
func NewCoroutine(body func(yield func(args ...any) []any, first []any) error) *registry.Coroutine {
	return registry.NewCoroutine(body)
}

// Request is the public handle to an outstanding request (spec.md §4.3).
// It wraps the internal RequestRecord so callers never see the registry
// package directly.
type Request struct {
	ctx *Context
	rec *registry.RequestRecord
}

// newRequest pins a new request against the Context's request registry
// (spec.md §4.3's setup()).
func newRequest(ctx *Context, continuation Continuation, aux ...any) *Request {
	rec := ctx.requests.Setup(continuation, aux...)
	ctx.loop.IncRequests()
	return &Request{ctx: ctx, rec: rec}
}

// fulfill invokes the request's continuation and then cleans it up,
// the fulfill-then-cleanup flow the stream, tcp, pipe and udp completions
// use (spec.md §4.3).
func (r *Request) fulfill(args ...any) {
	r.ctx.requests.Fulfill(r.rec, r.onUncaught, args...)
	r.cleanup()
}

// cleanup releases the request's pin without invoking its continuation;
// used by paths that already called fulfill or that are cancelling a
// request that never started.
func (r *Request) cleanup() {
	r.ctx.requests.Cleanup(r.rec)
	r.ctx.loop.DecRequests()
}

func (r *Request) onUncaught(err error) {
	r.ctx.onUncaught(NewUncaughtError(err))
}

// Cancel attempts to cancel the request, firing its continuation with the
// standard cancellation status (spec.md §5's cancel() contract).
func (r *Request) Cancel() {
	r.ctx.requests.Cancel(r.rec, r.onUncaught, NewSysError("ECANCELED", "request was cancelled"))
	r.ctx.loop.DecRequests()
}

// ErrRequestCancelled is the canonical status delivered to a cancelled
// request's continuation (spec.md §5, §8).
var ErrRequestCancelled = NewSysError("ECANCELED", "request was cancelled")
