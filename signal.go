package uvbridge

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

var signalByName = map[string]os.Signal{
	"SIGHUP": unix.SIGHUP, "SIGINT": unix.SIGINT, "SIGQUIT": unix.SIGQUIT,
	"SIGILL": unix.SIGILL, "SIGTRAP": unix.SIGTRAP, "SIGABRT": unix.SIGABRT,
	"SIGBUS": unix.SIGBUS, "SIGFPE": unix.SIGFPE, "SIGKILL": unix.SIGKILL,
	"SIGUSR1": unix.SIGUSR1, "SIGSEGV": unix.SIGSEGV, "SIGUSR2": unix.SIGUSR2,
	"SIGPIPE": unix.SIGPIPE, "SIGALRM": unix.SIGALRM, "SIGTERM": unix.SIGTERM,
	"SIGCHLD": unix.SIGCHLD, "SIGCONT": unix.SIGCONT, "SIGSTOP": unix.SIGSTOP,
	"SIGTSTP": unix.SIGTSTP, "SIGTTIN": unix.SIGTTIN, "SIGTTOU": unix.SIGTTOU,
	"SIGURG": unix.SIGURG, "SIGXCPU": unix.SIGXCPU, "SIGXFSZ": unix.SIGXFSZ,
	"SIGVTALRM": unix.SIGVTALRM, "SIGPROF": unix.SIGPROF, "SIGWINCH": unix.SIGWINCH,
	"SIGIO": unix.SIGIO, "SIGSYS": unix.SIGSYS,
	"SIGPOLL": unix.SIGPOLL, "SIGLOST": unix.SIGLOST, "SIGPWR": unix.SIGPWR,
	"SIGSTKFLT": unix.SIGSTKFLT,
}

// Signal is the handle type from spec.md §4.6/§6: start(name, cb)/stop(),
// with a one-shot variant that fires exactly once.
type Signal struct {
	Handle

	ch     chan os.Signal
	stopCh chan struct{}
	cb     func(name string)
}

func NewSignal(ctx *Context) *Signal {
	h := &Signal{Handle: newHandle(ctx, KindSignal)}
	ctx.registerHandle(&h.Handle)
	return h
}

// Start begins watching for the named signal. oneshot fires the callback
// at most once, then stops automatically.
func (s *Signal) Start(name string, oneshot bool, cb func(name string)) error {
	if s.IsClosing() {
		return NewStateError("start", "signal handle is closing")
	}
	normalized, err := ParseSignalName(name)
	if err != nil {
		return err
	}
	sig, ok := signalByName[normalized]
	if !ok {
		return NewArgError(1, "signal name", "unsupported signal "+normalized)
	}

	s.cb = cb
	s.ch = make(chan os.Signal, 8)
	s.stopCh = make(chan struct{})
	signal.Notify(s.ch, sig)
	s.markActive()

	go func() {
		for {
			select {
			case <-s.ch:
				s.ctx.loop.PostEvent(func() {
					s.ctx.dispatch(func() { s.cb(normalized) })
					if oneshot {
						s.Stop()
					}
				})
			case <-s.stopCh:
				return
			}
		}
	}()
	return nil
}

// Stop idempotently stops watching for the signal.
func (s *Signal) Stop() {
	if s.stopCh == nil {
		return
	}
	signal.Stop(s.ch)
	close(s.stopCh)
	s.stopCh = nil
	s.markInactive()
}

func (s *Signal) Close(cb func()) error {
	if err := s.beginClose(cb); err != nil {
		return err
	}
	s.Stop()
	s.ctx.unregisterHandle(&s.Handle)
	s.finishClose()
	return nil
}
