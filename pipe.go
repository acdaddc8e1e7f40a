package uvbridge

import (
	"net"
	"os"
	"time"
)

// Pipe is the stream-like handle from spec.md §4.7, backed by a Unix
// domain socket (for bind/connect) or an anonymous OS pipe (for Open).
type Pipe struct {
	Handle
	streamState

	ipc              bool
	pendingInstances int
}

// NewPipe constructs an inert Pipe handle. ipc marks it as IPC-capable
// (spec.md §4.7's init(ipc?)).
func NewPipe(ctx *Context, ipc bool) *Pipe {
	p := &Pipe{Handle: newHandle(ctx, KindPipe), streamState: newStreamState(), ipc: ipc}
	ctx.registerHandle(&p.Handle)
	return p
}

// Bind listens on a Unix domain socket at path (spec.md §4.7).
func (p *Pipe) Bind(path string) error {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return WrapSysError("bind", err)
	}
	p.smu.Lock()
	p.listener = ln
	p.smu.Unlock()
	return nil
}

// Open wraps an already-open file descriptor as the pipe's connection
// (spec.md §4.7's open(fd)).
func (p *Pipe) Open(fd int) error {
	f := os.NewFile(uintptr(fd), "pipe")
	if f == nil {
		return NewArgError(1, "fd", "invalid file descriptor")
	}
	conn, err := net.FileConn(f)
	if err != nil {
		p.smu.Lock()
		p.conn = pipeFileConn{f}
		p.readable = true
		p.writable = true
		p.smu.Unlock()
		return nil
	}
	p.smu.Lock()
	p.conn = conn
	p.readable = true
	p.writable = true
	p.smu.Unlock()
	return nil
}

// pipeFileConn adapts a raw *os.File (anonymous pipe ends are not
// sockets, so net.FileConn rejects them) to the net.Conn surface
// streamState needs.
type pipeFileConn struct{ f *os.File }

func (c pipeFileConn) Read(b []byte) (int, error)  { return c.f.Read(b) }
func (c pipeFileConn) Write(b []byte) (int, error) { return c.f.Write(b) }
func (c pipeFileConn) Close() error                { return c.f.Close() }
func (c pipeFileConn) LocalAddr() net.Addr  { return pipeAddr{} }
func (c pipeFileConn) RemoteAddr() net.Addr { return pipeAddr{} }
func (c pipeFileConn) SetDeadline(t time.Time) error      { return nil }
func (c pipeFileConn) SetReadDeadline(t time.Time) error  { return nil }
func (c pipeFileConn) SetWriteDeadline(t time.Time) error { return nil }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

// Listen starts accepting connections on a bound pipe (spec.md §4.7).
func (p *Pipe) Listen(backlog int, onConn func(err error)) error {
	p.markActive()
	return p.listen(p.ctx, backlog, onConn)
}

// Accept moves one pending accepted connection into client.
func (p *Pipe) Accept(client *Pipe) error { return p.accept(&client.streamState) }

// Connect dials a Unix domain socket at path.
func (p *Pipe) Connect(path string, cb func(err error)) (*Request, error) {
	req := newRequest(p.ctx, CallbackContinuation(func(args ...any) {
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
	p.markActive()
	go func() {
		conn, dialErr := net.Dial("unix", path)
		p.ctx.loop.PostEvent(func() {
			p.markInactive()
			if dialErr == nil {
				p.smu.Lock()
				p.conn = conn
				p.readable = true
				p.writable = true
				p.smu.Unlock()
				req.fulfill(nil)
			} else {
				req.fulfill(WrapSysError("connect", dialErr))
			}
		})
	}()
	return req, nil
}

// ReadStart, ReadStop, Write, TryWrite and Shutdown delegate to the shared
// stream engine (spec.md §4.4, reused verbatim for pipes per §4.7).
func (p *Pipe) ReadStart(cb func(err error, chunk []byte)) error { return p.readStart(p.ctx, cb) }
func (p *Pipe) ReadStop()                                        { p.readStop() }
func (p *Pipe) Write(data [][]byte, cb func(err error)) (*Request, error) {
	return p.write(p.ctx, data, cb)
}
func (p *Pipe) TryWrite(data [][]byte) (int, error)    { return p.tryWrite(data) }
func (p *Pipe) Shutdown(cb func(err error)) error      { return p.shutdown(p.ctx, cb) }

// PendingInstances sets the Windows-only pending-instance count; a no-op
// retained for API compatibility on platforms without the concept.
func (p *Pipe) PendingInstances(n int) { p.pendingInstances = n }

// Close closes the Pipe handle (spec.md §4.2, §4.4).
func (p *Pipe) Close(cb func()) error {
	if err := p.beginClose(cb); err != nil {
		return err
	}
	p.destroy(p.ctx)
	p.ctx.unregisterHandle(&p.Handle)
	p.finishClose()
	return nil
}
