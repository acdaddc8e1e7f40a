package uvbridge

import (
	"errors"
	"io"
	"net"
	"sync"
	"syscall"

	"github.com/behrlich/uvbridge/internal/bufpool"
	"github.com/behrlich/uvbridge/internal/value"
)

// streamState is spec.md §3's "Stream state", embedded by every
// stream-like handle (TCP, pipe, TTY). It owns the write queue, the
// listen/accept plumbing, and the read loop; concrete types add their own
// net.Conn/net.Listener construction.
type streamState struct {
	smu sync.Mutex

	conn     net.Conn
	listener net.Listener

	readable bool
	writable bool
	shutting bool
	shut     bool

	onConnection func(err error)
	pendingConns chan net.Conn

	onRead     func(err error, chunk []byte)
	readStopCh chan struct{}
	reading    bool

	pendingWrites   []*writeItem
	writeQueueSize  int
	shutdownRequest *Request
}

type writeItem struct {
	req  *Request
	bufs [][]byte
	cb   func(err error)
}

func newStreamState() streamState {
	return streamState{readable: true, writable: true}
}

// WriteQueueSize reports spec.md §8's write_queue_size invariant.
func (s *streamState) WriteQueueSize() int {
	s.smu.Lock()
	defer s.smu.Unlock()
	return s.writeQueueSize
}

func (s *streamState) IsReadable() bool {
	s.smu.Lock()
	defer s.smu.Unlock()
	return s.readable
}

func (s *streamState) IsWritable() bool {
	s.smu.Lock()
	defer s.smu.Unlock()
	return s.writable
}

// listen stores onConn in the CONNECTION slot and begins accepting
// connections in the background, queuing them for Accept (spec.md §4.4).
func (s *streamState) listen(ctx *Context, backlog int, onConn func(err error)) error {
	s.smu.Lock()
	if s.listener == nil {
		s.smu.Unlock()
		return NewStateError("listen", "handle has no listener bound")
	}
	s.onConnection = onConn
	s.pendingConns = make(chan net.Conn, backlog)
	s.smu.Unlock()

	go func() {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if spare := ctx.spareFD; spare != nil && spare.f != nil &&
					(errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE)) {
					// Out of descriptors: free the spare, accept and drop one
					// pending connection, then reopen the spare.
					release := spare.borrow()
					if extra, aerr := s.listener.Accept(); aerr == nil {
						extra.Close()
					}
					release()
					continue
				}
				ctx.loop.PostEvent(func() {
					ctx.dispatch(func() { s.onConnection(WrapSysError("accept", err)) })
				})
				return
			}
			select {
			case s.pendingConns <- conn:
				ctx.loop.PostEvent(func() {
					ctx.dispatch(func() { s.onConnection(nil) })
				})
			default:
				// Backlog full: borrow the context's spare descriptor so the
				// accept-then-drop below has a free fd to work with even
				// under EMFILE, then close the connection immediately
				// (spec.md §4.4's overload-drop path, §5's spare-fd policy).
				release := ctx.spareFD.borrow()
				conn.Close()
				release()
			}
		}
	}()
	return nil
}

// accept moves one pending accepted connection from the server into
// client, failing with EAGAIN if none is queued (spec.md §4.4).
func (server *streamState) accept(client *streamState) error {
	server.smu.Lock()
	ch := server.pendingConns
	server.smu.Unlock()
	if ch == nil {
		return NewSysError("EAGAIN", "no pending connection")
	}
	select {
	case conn := <-ch:
		client.smu.Lock()
		client.conn = conn
		client.readable = true
		client.writable = true
		client.smu.Unlock()
		return nil
	default:
		return NewSysError("EAGAIN", "no pending connection")
	}
}

// readStart begins the read loop (spec.md §4.4's read algorithm): a
// background goroutine reads into a pooled 64 KiB buffer and delivers each
// chunk to onRead, waiting for that callback to run before reading again.
// EOF is delivered as onRead(nil, nil); any other error is delivered once,
// the loop ends, and the caller must close. There is no per-event read cap.
func (s *streamState) readStart(ctx *Context, onRead func(err error, chunk []byte)) error {
	s.smu.Lock()
	if s.conn == nil {
		s.smu.Unlock()
		return NewStateError("read_start", "stream has no connection")
	}
	if s.reading {
		s.smu.Unlock()
		return nil
	}
	s.onRead = onRead
	s.reading = true
	s.readStopCh = make(chan struct{})
	stopCh := s.readStopCh
	conn := s.conn
	s.smu.Unlock()

	go s.readLoop(ctx, conn, stopCh)
	return nil
}

func (s *streamState) readLoop(ctx *Context, conn net.Conn, stopCh chan struct{}) {
	buf := bufpool.Get(bufpool.Size64k)
	defer bufpool.Put(buf)
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		start := ctx.Now()
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			ctx.metrics.RecordStreamRead(n, uint64(ctx.Now().Sub(start)))
			delivered := make(chan struct{})
			ctx.loop.PostEvent(func() {
				defer close(delivered)
				ctx.dispatch(func() { s.onRead(nil, chunk) })
			})
			<-delivered
		}
		if err != nil {
			final := err
			if final == io.EOF {
				final = nil // EOF delivered as the zero-argument completion
			} else {
				final = WrapSysError("read", err)
			}
			ctx.loop.PostEvent(func() {
				ctx.dispatch(func() { s.onRead(final, nil) })
			})
			return
		}
	}
}

// readStop is idempotent and safe from within an onread callback.
func (s *streamState) readStop() {
	s.smu.Lock()
	if !s.reading {
		s.smu.Unlock()
		return
	}
	s.reading = false
	close(s.readStopCh)
	s.smu.Unlock()
}

// write appends a request to the pending queue; if it was empty, attempts
// an immediate best-effort write (spec.md §4.4's write algorithm).
func (s *streamState) write(ctx *Context, bufs [][]byte, cb func(err error)) (*Request, error) {
	s.smu.Lock()
	if s.conn == nil {
		s.smu.Unlock()
		return nil, NewStateError("write", "stream has no connection")
	}
	if s.shutting || s.shut {
		s.smu.Unlock()
		return nil, NewStateError("write", "stream is shutting down")
	}
	wasEmpty := len(s.pendingWrites) == 0
	req := newRequest(ctx, NoContinuation())
	item := &writeItem{req: req, bufs: bufs, cb: cb}
	s.pendingWrites = append(s.pendingWrites, item)
	for _, b := range bufs {
		s.writeQueueSize += len(b)
	}
	s.smu.Unlock()

	if wasEmpty {
		go s.drainWrites(ctx)
	}
	return req, nil
}

// tryWrite writes directly to the connection and never queues (spec.md
// §4.4). It is not non-blocking: it returns once conn.Write has returned for
// every buffer, or at the first error.
func (s *streamState) tryWrite(bufs [][]byte) (int, error) {
	s.smu.Lock()
	conn := s.conn
	s.smu.Unlock()
	if conn == nil {
		return 0, NewStateError("try_write", "stream has no connection")
	}
	total := 0
	for _, b := range bufs {
		n, err := conn.Write(b)
		total += n
		if err != nil {
			return total, WrapSysError("try_write", err)
		}
	}
	return total, nil
}

// drainWrites processes the pending queue front-to-back until empty,
// running on a background goroutine and posting each completion back to
// the loop (spec.md §4.4's completed-queue draining).
func (s *streamState) drainWrites(ctx *Context) {
	for {
		s.smu.Lock()
		if len(s.pendingWrites) == 0 {
			s.smu.Unlock()
			return
		}
		item := s.pendingWrites[0]
		conn := s.conn
		s.smu.Unlock()

		start := ctx.Now()
		cursor := value.NewBuffers(item.bufs...)
		var writeErr error
		for !cursor.Done() {
			nb := net.Buffers(cursor.Remaining())
			n, err := nb.WriteTo(conn)
			cursor.Advance(int(n))
			if err != nil {
				writeErr = WrapSysError("write", err)
				break
			}
		}
		written := 0
		for _, b := range item.bufs {
			written += len(b)
		}
		written -= cursor.UnwrittenBytes()
		ctx.metrics.RecordStreamWrite(written, uint64(ctx.Now().Sub(start)), writeErr == nil)

		s.smu.Lock()
		s.pendingWrites = s.pendingWrites[1:]
		for _, b := range item.bufs {
			s.writeQueueSize -= len(b)
		}
		drained := len(s.pendingWrites) == 0
		s.smu.Unlock()

		ctx.loop.PostEvent(func() {
			ctx.dispatch(func() {
				if item.cb != nil {
					item.cb(writeErr)
				}
			})
			item.req.fulfill(writeErr)
		})

		if drained {
			s.maybeFinishShutdown(ctx)
			return
		}
	}
}

// shutdown sets the shutting flag; once the pending queue has drained, it
// performs a half-close and fires cb (spec.md §4.4).
func (s *streamState) shutdown(ctx *Context, cb func(err error)) error {
	s.smu.Lock()
	if !s.writable {
		s.smu.Unlock()
		return NewStateError("shutdown", "stream is not writable")
	}
	if s.shut || s.shutting {
		s.smu.Unlock()
		return NewStateError("shutdown", "stream is already shutting down")
	}
	s.shutting = true
	req := newRequest(ctx, CallbackContinuation(func(args ...any) {
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
	s.shutdownRequest = req
	empty := len(s.pendingWrites) == 0
	s.smu.Unlock()

	if empty {
		s.finishShutdown(ctx)
	}
	return nil
}

func (s *streamState) maybeFinishShutdown(ctx *Context) {
	s.smu.Lock()
	shouldFinish := s.shutting && !s.shut && len(s.pendingWrites) == 0
	s.smu.Unlock()
	if shouldFinish {
		s.finishShutdown(ctx)
	}
}

func (s *streamState) finishShutdown(ctx *Context) {
	s.smu.Lock()
	conn := s.conn
	req := s.shutdownRequest
	s.shut = true
	s.writable = false
	s.smu.Unlock()

	var err error
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		err = cw.CloseWrite()
	}
	if req != nil {
		req.fulfill(WrapSysErrorOrNil(err))
	}
}

// WrapSysErrorOrNil wraps err as a SYS-class error unless it is nil.
func WrapSysErrorOrNil(err error) error {
	if err == nil {
		return nil
	}
	return WrapSysError("shutdown", err)
}

// destroy stops the read loop, fulfills every pending write request and any
// pending shutdown request with ECANCELED, and closes the listener and the
// connection (spec.md §4.4's uv__stream_destroy, on close). A connect in
// flight is not tracked in streamState and is not cancelled here.
func (s *streamState) destroy(ctx *Context) {
	s.smu.Lock()
	conn := s.conn
	listener := s.listener
	pending := s.pendingWrites
	s.pendingWrites = nil
	s.writeQueueSize = 0
	shutdownReq := s.shutdownRequest
	s.shutdownRequest = nil
	reading := s.reading
	stopCh := s.readStopCh
	s.smu.Unlock()

	if reading {
		close(stopCh)
	}
	for _, item := range pending {
		item.req.fulfill(ErrRequestCancelled)
	}
	if shutdownReq != nil {
		shutdownReq.fulfill(ErrRequestCancelled)
	}
	if listener != nil {
		listener.Close()
	}
	if conn != nil {
		conn.Close()
	}
}
