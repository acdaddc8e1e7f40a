package uvbridge

import (
	"fmt"
	"net"

	"github.com/behrlich/uvbridge/internal/value"
)

// TCP is the stream-like handle from spec.md §4.4, backed by a TCP
// listener or connection.
type TCP struct {
	Handle
	streamState
}

// NewTCP constructs an inert TCP handle bound to ctx.
func NewTCP(ctx *Context) *TCP {
	t := &TCP{Handle: newHandle(ctx, KindTCP), streamState: newStreamState()}
	ctx.registerHandle(&t.Handle)
	return t
}

// Bind opens a listening socket on host:port; Listen then stores onConn in
// the CONNECTION slot and starts accepting (spec.md §4.4's listen()).
func (t *TCP) Bind(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapSysError("bind", err)
	}
	t.smu.Lock()
	t.listener = ln
	t.smu.Unlock()
	return nil
}

// Listen starts accepting connections (spec.md §4.4).
func (t *TCP) Listen(backlog int, onConn func(err error)) error {
	t.markActive()
	return t.listen(t.ctx, backlog, onConn)
}

// Accept moves the pending accepted connection from t to client (spec.md
// §4.4).
func (t *TCP) Accept(client *TCP) error {
	return t.accept(&client.streamState)
}

// Connect dials host:port, invoking cb on completion (spec.md §4.4's
// connect request).
func (t *TCP) Connect(host string, port int, cb func(err error)) (*Request, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	req := newRequest(t.ctx, CallbackContinuation(func(args ...any) {
		var err error
		if len(args) > 0 {
			if e, ok := args[0].(error); ok {
				err = e
			}
		}
		if cb != nil {
			cb(err)
		}
	}))
	t.markActive()
	go func() {
		conn, dialErr := net.Dial("tcp", addr)
		t.ctx.loop.PostEvent(func() {
			t.markInactive()
			if dialErr == nil {
				t.smu.Lock()
				t.conn = conn
				t.readable = true
				t.writable = true
				t.smu.Unlock()
				req.fulfill(nil)
			} else {
				req.fulfill(WrapSysError("connect", dialErr))
			}
		})
	}()
	return req, nil
}

// ReadStart begins the read loop (spec.md §4.4).
func (t *TCP) ReadStart(cb func(err error, chunk []byte)) error {
	return t.readStart(t.ctx, cb)
}

// ReadStop is idempotent.
func (t *TCP) ReadStop() { t.readStop() }

// Write appends data to the write queue (spec.md §4.4).
func (t *TCP) Write(data [][]byte, cb func(err error)) (*Request, error) {
	return t.write(t.ctx, data, cb)
}

// TryWrite writes directly to the connection without queuing; the call
// blocks until the underlying writes return (spec.md §4.4).
func (t *TCP) TryWrite(data [][]byte) (int, error) { return t.tryWrite(data) }

// Shutdown half-closes the stream once the write queue drains (spec.md
// §4.4).
func (t *TCP) Shutdown(cb func(err error)) error { return t.shutdown(t.ctx, cb) }

// GetSockName reports the local address (spec.md §4.11's sockaddr
// encoding).
func (t *TCP) GetSockName() (value.SockAddr, error) {
	t.smu.Lock()
	conn := t.conn
	ln := t.listener
	t.smu.Unlock()
	if conn != nil {
		return value.EncodeAddr(conn.LocalAddr()), nil
	}
	if ln != nil {
		return value.EncodeAddr(ln.Addr()), nil
	}
	return value.SockAddr{}, NewStateError("getsockname", "handle is not bound")
}

// GetPeerName reports the remote address of a connected TCP handle.
func (t *TCP) GetPeerName() (value.SockAddr, error) {
	t.smu.Lock()
	conn := t.conn
	t.smu.Unlock()
	if conn == nil {
		return value.SockAddr{}, NewStateError("getpeername", "handle is not connected")
	}
	return value.EncodeAddr(conn.RemoteAddr()), nil
}

// Close closes the TCP handle, destroying its stream state and cancelling
// outstanding requests (spec.md §4.4's uv__stream_destroy, §4.2).
func (t *TCP) Close(cb func()) error {
	if err := t.beginClose(cb); err != nil {
		return err
	}
	t.destroy(t.ctx)
	t.ctx.unregisterHandle(&t.Handle)
	t.finishClose()
	return nil
}
