// Package bufpool provides pooled byte slices for stream and datagram reads,
// avoiding a fresh allocation on every readable/writable event.
//
// Uses size-bucketed pools with power-of-2 sizes (64KB, 128KB, 256KB, 512KB,
// 1MB) to balance memory efficiency with allocation reduction. Uses
// *[]byte pattern to avoid sync.Pool's interface-boxing overhead.
package bufpool

import "sync"

// Bucket sizes. 64KB is the default read-buffer size handed to the stream
// allocator (spec §4.4); larger buckets serve callers that ask for more.
// Requests above 1MB get a fresh allocation that Put does not pool.
const (
	Size64k  = 64 * 1024
	Size128k = 128 * 1024
	Size256k = 256 * 1024
	Size512k = 512 * 1024
	Size1m   = 1024 * 1024
)

var pools = struct {
	p64k, p128k, p256k, p512k, p1m sync.Pool
}{
	p64k:  sync.Pool{New: func() any { b := make([]byte, Size64k); return &b }},
	p128k: sync.Pool{New: func() any { b := make([]byte, Size128k); return &b }},
	p256k: sync.Pool{New: func() any { b := make([]byte, Size256k); return &b }},
	p512k: sync.Pool{New: func() any { b := make([]byte, Size512k); return &b }},
	p1m:   sync.Pool{New: func() any { b := make([]byte, Size1m); return &b }},
}

// Get returns a pooled buffer of at least the requested size. Callers must
// call Put when done with it.
func Get(size int) []byte {
	switch {
	case size <= Size64k:
		return (*pools.p64k.Get().(*[]byte))[:size]
	case size <= Size128k:
		return (*pools.p128k.Get().(*[]byte))[:size]
	case size <= Size256k:
		return (*pools.p256k.Get().(*[]byte))[:size]
	case size <= Size512k:
		return (*pools.p512k.Get().(*[]byte))[:size]
	case size <= Size1m:
		return (*pools.p1m.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns a buffer to the pool it was drawn from. Buffers whose capacity
// doesn't match a bucket exactly (e.g. a caller-supplied write buffer) are
// dropped instead of pooled.
func Put(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case Size64k:
		pools.p64k.Put(&buf)
	case Size128k:
		pools.p128k.Put(&buf)
	case Size256k:
		pools.p256k.Put(&buf)
	case Size512k:
		pools.p512k.Put(&buf)
	case Size1m:
		pools.p1m.Put(&buf)
	}
}
