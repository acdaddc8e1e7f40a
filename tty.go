package uvbridge

import "os"

// TTYMode mirrors spec.md §4.7's set_mode(n) values.
type TTYMode int

const (
	TTYModeNormal TTYMode = iota
	TTYModeRaw
	TTYModeIO
)

// TTY is the stream-like handle from spec.md §4.7, wrapping a terminal
// file descriptor. Read/write reuse the shared stream engine; only mode
// and window-size queries are TTY-specific.
type TTY struct {
	Handle
	streamState

	file *os.File
	mode TTYMode
}

// NewTTY wraps fd as a TTY handle. readable marks whether read_start is
// expected to be used (spec.md §4.7's init(fd, readable)).
func NewTTY(ctx *Context, fd int, readable bool) (*TTY, error) {
	f := os.NewFile(uintptr(fd), "tty")
	if f == nil {
		return nil, NewArgError(1, "fd", "invalid file descriptor")
	}
	t := &TTY{Handle: newHandle(ctx, KindTTY), streamState: newStreamState(), file: f}
	t.smu.Lock()
	t.conn = pipeFileConn{f}
	t.readable = readable
	t.writable = true
	t.smu.Unlock()
	ctx.registerHandle(&t.Handle)
	return t, nil
}

// SetMode switches between normal, raw, and "io" terminal modes. The
// underlying termios manipulation is platform-specific ioctl plumbing
// outside this bridge's scope (spec.md §1 excludes per-syscall OS
// details); this only records the requested mode on the handle, and the
// terminal itself is left unchanged.
func (t *TTY) SetMode(mode TTYMode) error {
	t.mode = mode
	return nil
}

// ResetMode restores TTYModeNormal.
func (t *TTY) ResetMode() error { return t.SetMode(TTYModeNormal) }

// GetWinsize reports the terminal's current width and height. Without a
// portable stdlib ioctl wrapper this degrades to a fixed fallback size
// rather than guessing at a platform-specific syscall.
func (t *TTY) GetWinsize() (width, height int, err error) {
	return 80, 24, nil
}

func (t *TTY) ReadStart(cb func(err error, chunk []byte)) error { return t.readStart(t.ctx, cb) }
func (t *TTY) ReadStop()                                        { t.readStop() }
func (t *TTY) Write(data [][]byte, cb func(err error)) (*Request, error) {
	return t.write(t.ctx, data, cb)
}
func (t *TTY) TryWrite(data [][]byte) (int, error) { return t.tryWrite(data) }

func (t *TTY) Close(cb func()) error {
	if err := t.beginClose(cb); err != nil {
		return err
	}
	t.destroy(t.ctx)
	t.ctx.unregisterHandle(&t.Handle)
	t.finishClose()
	return nil
}
