// Package registry implements the handle/request pinning arena described in
// spec.md §4.2-§4.3 and re-architected per §9's Design Notes: rather than a
// raw userdata slot pinned in a process-global Lua table, every live handle
// or outstanding request is a typed Go value referenced by a stable opaque
// ID in one of these arenas. Storing a value here is the "pin" — it is what
// keeps the value reachable independent of any script-visible variable;
// removing it is the "unpin".
package registry

import (
	"sync"

	"github.com/google/uuid"
)

// NewID returns a new globally-unique, opaque identifier suitable for
// keying a handle or request in an Arena.
func NewID() string {
	return uuid.New().String()
}

// Arena is a concurrency-safe strong-reference table keyed by opaque ID.
type Arena[T any] struct {
	mu    sync.Mutex
	items map[string]T
}

// NewArena constructs an empty Arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{items: make(map[string]T)}
}

// Pin stores v under id, pinning it. A second Pin under the same id replaces
// the previous value.
func (a *Arena[T]) Pin(id string, v T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items[id] = v
}

// Unpin removes id, releasing the strong reference.
func (a *Arena[T]) Unpin(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.items, id)
}

// Get looks up id.
func (a *Arena[T]) Get(id string) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.items[id]
	return v, ok
}

// Len reports the number of pinned entries.
func (a *Arena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Each calls fn for a snapshot of the pinned entries, taken under the lock
// but invoked outside it so fn may itself Pin/Unpin without deadlocking.
// This backs Context.Walk (spec.md §4.1).
func (a *Arena[T]) Each(fn func(id string, v T)) {
	a.mu.Lock()
	snapshot := make(map[string]T, len(a.items))
	for k, v := range a.items {
		snapshot[k] = v
	}
	a.mu.Unlock()
	for k, v := range snapshot {
		fn(k, v)
	}
}
