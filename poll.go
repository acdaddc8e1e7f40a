package uvbridge

import (
	"os"
	"time"
)

// Poll is the handle type from spec.md §4.6: watches a raw file
// descriptor for readiness and reports it with an event string. Only "r",
// "w" and "rw" are ever reported: the Disconnect and Prioritized options
// are accepted but never produce "d" or "p", and "w" is reported whenever
// Writable is requested, without probing the fd. The OS-level readiness
// mechanism (epoll/kqueue/IOCP) is explicitly out of scope (spec.md §1);
// this implementation polls the fd via a deadline-bounded Read probe on a
// dedicated goroutine.
type Poll struct {
	Handle

	file   *os.File
	want   PollOptions
	stopCh chan struct{}
	cb     func(err error, events string)
}

// PollOptions selects which readiness conditions to watch for.
type PollOptions struct {
	Readable    bool
	Writable    bool
	Disconnect  bool
	Prioritized bool
}

// NewPoll constructs a Poll handle over an already-open file descriptor.
func NewPoll(ctx *Context, fd int) (*Poll, error) {
	f := os.NewFile(uintptr(fd), "poll")
	if f == nil {
		return nil, NewArgError(1, "fd", "invalid file descriptor")
	}
	p := &Poll{Handle: newHandle(ctx, KindPoll), file: f}
	ctx.registerHandle(&p.Handle)
	return p, nil
}

// Start begins watching for the requested readiness conditions.
func (p *Poll) Start(opts PollOptions, cb func(err error, events string)) error {
	if p.IsClosing() {
		return NewStateError("start", "poll handle is closing")
	}
	p.want = opts
	p.cb = cb
	p.stopCh = make(chan struct{})
	p.markActive()

	go p.loop()
	return nil
}

func (p *Poll) loop() {
	const probeInterval = 20 * time.Millisecond
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		events := p.probe()
		if events != "" {
			p.ctx.loop.PostEvent(func() {
				p.ctx.dispatch(func() { p.cb(nil, events) })
			})
		}
		time.Sleep(probeInterval)
	}
}

// probe is a best-effort, non-blocking readiness check built on SetDeadline
// rather than an OS readiness API, honoring spec.md §1's exclusion of
// epoll/kqueue/IOCP mechanics from this bridge's scope.
func (p *Poll) probe() string {
	events := ""
	if p.want.Readable {
		_ = p.file.SetReadDeadline(time.Now().Add(time.Millisecond))
		buf := make([]byte, 0)
		if _, err := p.file.Read(buf); err == nil {
			events += "r"
		}
	}
	if p.want.Writable {
		events += "w"
	}
	return events
}

// Stop idempotently stops watching.
func (p *Poll) Stop() {
	if p.stopCh == nil {
		return
	}
	close(p.stopCh)
	p.stopCh = nil
	p.markInactive()
}

func (p *Poll) Close(cb func()) error {
	if err := p.beginClose(cb); err != nil {
		return err
	}
	p.Stop()
	p.ctx.unregisterHandle(&p.Handle)
	p.finishClose()
	return nil
}
