package registry

// RequestRecord is spec.md §4.3's Request record: one per outstanding
// request (write, shutdown, connect, send, fs op). Aux holds whatever input
// buffers or other values must stay reachable until the request completes
// — in Go this is just a slice of references rather than a manual pin, but
// we still model it explicitly so Cleanup's contract ("release the self-ref,
// continuation-ref, and any auxiliary refs") is visible at the call site.
type RequestRecord struct {
	ID           string
	Continuation Continuation
	Aux          []any
}

// Requests is the Request Registry: Setup/Fulfill/Cleanup over an Arena of
// RequestRecords.
type Requests struct {
	arena *Arena[*RequestRecord]
}

// NewRequests constructs an empty Request Registry.
func NewRequests() *Requests {
	return &Requests{arena: NewArena[*RequestRecord]()}
}

// Setup pins a new request with the given continuation and auxiliary
// references, returning the record callers thread through to Fulfill and
// Cleanup.
func (r *Requests) Setup(continuation Continuation, aux ...any) *RequestRecord {
	rec := &RequestRecord{ID: NewID(), Continuation: continuation, Aux: aux}
	r.arena.Pin(rec.ID, rec)
	return rec
}

// Fulfill invokes rec's continuation with args. onUncaught receives any
// panic from a callable continuation or error from a coroutine resume.
func (r *Requests) Fulfill(rec *RequestRecord, onUncaught func(error), args ...any) {
	rec.Continuation.Fulfill(onUncaught, args...)
}

// Cleanup releases rec's pin and auxiliary references. Safe to call more
// than once.
func (r *Requests) Cleanup(rec *RequestRecord) {
	r.arena.Unpin(rec.ID)
	rec.Aux = nil
	rec.Continuation = Continuation{}
}

// Count reports the number of outstanding (not yet cleaned up) requests.
func (r *Requests) Count() int { return r.arena.Len() }

// Cancel is Fulfill with a conventional cancellation-status argument,
// followed by Cleanup (spec.md §4.4, §8). Request.Cancel goes through it;
// stream and udp close fulfill their queued requests directly.
func (r *Requests) Cancel(rec *RequestRecord, onUncaught func(error), cancelErr error) {
	r.Fulfill(rec, onUncaught, cancelErr)
	r.Cleanup(rec)
}
