package uvbridge

import (
	"fmt"
	"net"
	"sync"

	"github.com/behrlich/uvbridge/internal/bufpool"
	"github.com/behrlich/uvbridge/internal/value"
)

// UDP is the datagram handle from spec.md §4.5. Sends are queued and
// drained in submission order; receives are delivered in arrival order;
// every datagram is reported atomically (either fully sent or an error,
// never partial).
type UDP struct {
	Handle

	mu   sync.Mutex
	conn *net.UDPConn

	pendingSends []*udpSendItem
	sendQueueLen int

	onRecv     func(err error, data []byte, addr value.SockAddr, partial bool)
	recvStopCh chan struct{}
	receiving  bool
}

type udpSendItem struct {
	req  *Request
	data []byte
	addr *net.UDPAddr
	cb   func(err error)
}

// NewUDP constructs an inert UDP handle bound to ctx.
func NewUDP(ctx *Context) *UDP {
	u := &UDP{Handle: newHandle(ctx, KindUDP)}
	ctx.registerHandle(&u.Handle)
	return u
}

// Bind binds the socket to host:port (spec.md §4.5).
func (u *UDP) Bind(host string, port int) error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return NewArgError(1, "host/port", err.Error())
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return WrapSysError("bind", err)
	}
	u.mu.Lock()
	u.conn = conn
	u.mu.Unlock()
	return nil
}

// Connect fixes the socket's default peer, so future Send calls may omit
// host/port (spec.md §4.5).
func (u *UDP) Connect(host string, port int) error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return NewArgError(1, "host/port", err.Error())
	}
	u.mu.Lock()
	conn := u.conn
	u.mu.Unlock()
	if conn == nil {
		newConn, dialErr := net.DialUDP("udp", nil, addr)
		if dialErr != nil {
			return WrapSysError("connect", dialErr)
		}
		u.mu.Lock()
		u.conn = newConn
		u.mu.Unlock()
		return nil
	}
	return nil
}

// Send queues data to host:port, returning a request that fulfills on
// completion (spec.md §4.5's send pipeline).
func (u *UDP) Send(data []byte, host string, port int, cb func(err error)) (*Request, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, NewArgError(2, "host/port", err.Error())
	}
	u.mu.Lock()
	if u.conn == nil {
		u.mu.Unlock()
		return nil, NewStateError("send", "udp handle is not bound")
	}
	wasEmpty := len(u.pendingSends) == 0
	req := newRequest(u.ctx, NoContinuation())
	item := &udpSendItem{req: req, data: data, addr: addr, cb: cb}
	u.pendingSends = append(u.pendingSends, item)
	u.sendQueueLen += len(data)
	u.mu.Unlock()

	u.markActive()
	if wasEmpty {
		go u.drainSends()
	}
	return req, nil
}

// TrySend performs a non-blocking best-effort send (spec.md §4.5).
func (u *UDP) TrySend(data []byte, host string, port int) error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return NewArgError(2, "host/port", err.Error())
	}
	u.mu.Lock()
	conn := u.conn
	u.mu.Unlock()
	if conn == nil {
		return NewStateError("try_send", "udp handle is not bound")
	}
	if _, err := conn.WriteToUDP(data, addr); err != nil {
		return WrapSysError("try_send", err)
	}
	return nil
}

func (u *UDP) drainSends() {
	for {
		u.mu.Lock()
		if len(u.pendingSends) == 0 {
			u.mu.Unlock()
			u.markInactive()
			return
		}
		item := u.pendingSends[0]
		conn := u.conn
		u.mu.Unlock()

		_, sendErr := conn.WriteToUDP(item.data, item.addr)
		var wrapped error
		if sendErr != nil {
			wrapped = WrapSysError("send", sendErr)
		}

		u.mu.Lock()
		u.pendingSends = u.pendingSends[1:]
		u.sendQueueLen -= len(item.data)
		u.mu.Unlock()

		u.ctx.loop.PostEvent(func() {
			u.ctx.dispatch(func() {
				if item.cb != nil {
					item.cb(wrapped)
				}
			})
			item.req.fulfill(wrapped)
		})
	}
}

// RecvStart begins receiving datagrams, delivering each to cb (spec.md
// §4.5's recv path). recvmmsg-style batching is out of scope (spec.md §1
// excludes per-syscall OS detail); every datagram is delivered
// individually instead of in a batched buffer.
func (u *UDP) RecvStart(cb func(err error, data []byte, addr value.SockAddr, partial bool)) error {
	u.mu.Lock()
	if u.conn == nil {
		u.mu.Unlock()
		return NewStateError("recv_start", "udp handle is not bound")
	}
	if u.receiving {
		u.mu.Unlock()
		return nil
	}
	u.onRecv = cb
	u.receiving = true
	u.recvStopCh = make(chan struct{})
	conn := u.conn
	stopCh := u.recvStopCh
	u.mu.Unlock()

	u.markActive()
	go u.recvLoop(conn, stopCh)
	return nil
}

func (u *UDP) recvLoop(conn *net.UDPConn, stopCh chan struct{}) {
	buf := bufpool.Get(bufpool.Size64k)
	defer bufpool.Put(buf)
	for {
		select {
		case <-stopCh:
			return
		default:
		}
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			u.ctx.loop.PostEvent(func() {
				u.ctx.dispatch(func() { u.onRecv(WrapSysError("recv", err), nil, value.SockAddr{}, false) })
			})
			return
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		sockAddr := value.EncodeAddr(addr)
		partial := n == len(buf)
		u.ctx.loop.PostEvent(func() {
			u.ctx.dispatch(func() { u.onRecv(nil, chunk, sockAddr, partial) })
		})
	}
}

// RecvStop is idempotent.
func (u *UDP) RecvStop() {
	u.mu.Lock()
	if !u.receiving {
		u.mu.Unlock()
		return
	}
	u.receiving = false
	close(u.recvStopCh)
	u.mu.Unlock()
	u.markInactive()
}

// GetSockName reports the local address.
func (u *UDP) GetSockName() (value.SockAddr, error) {
	u.mu.Lock()
	conn := u.conn
	u.mu.Unlock()
	if conn == nil {
		return value.SockAddr{}, NewStateError("getsockname", "udp handle is not bound")
	}
	return value.EncodeAddr(conn.LocalAddr()), nil
}

// SetBroadcast toggles SO_BROADCAST; unsupported on net.UDPConn's portable
// surface, so it validates state and otherwise no-ops rather than
// reaching into platform-specific socket options.
func (u *UDP) SetBroadcast(bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return NewStateError("set_broadcast", "udp handle is not bound")
	}
	return nil
}

// Close closes the UDP handle, cancelling outstanding sends.
func (u *UDP) Close(cb func()) error {
	if err := u.beginClose(cb); err != nil {
		return err
	}
	u.mu.Lock()
	conn := u.conn
	pending := u.pendingSends
	u.pendingSends = nil
	receiving := u.receiving
	stopCh := u.recvStopCh
	u.mu.Unlock()

	if receiving {
		close(stopCh)
	}
	for _, item := range pending {
		item.req.fulfill(ErrRequestCancelled)
	}
	if conn != nil {
		conn.Close()
	}
	u.ctx.unregisterHandle(&u.Handle)
	u.finishClose()
	return nil
}
