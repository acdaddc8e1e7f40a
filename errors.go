package uvbridge

import (
	"errors"
	"fmt"
	"syscall"
)

// Class is the error taxonomy from spec.md §7. Every error the bridge
// produces belongs to exactly one class, which determines how it crosses
// back into the scripting host.
type Class string

const (
	// ClassSys: a native operation failed. Surfaced as the tri-tuple
	// (nil, "<NAME>: <message>", "<NAME>").
	ClassSys Class = "SYS"
	// ClassArg: an argument failed validation. Surfaced by throwing, with
	// the offending slot number and expected type.
	ClassArg Class = "ARG"
	// ClassState: an operation is invalid in the handle's current state
	// (e.g. close on an already-closing handle).
	ClassState Class = "STATE"
	// ClassWorker: an error inside a thread-pool item. Delivered through
	// the after-work callback's first argument; never fatal.
	ClassWorker Class = "WORKER"
	// ClassUncaught: an error raised inside a loop callback.
	ClassUncaught Class = "UNCAUGHT"
)

// Error is the structured error type produced by every bridge operation.
type Error struct {
	Class Class  // taxonomy bucket (spec.md §7)
	Name  string // canonical short symbol, e.g. "EAGAIN", "ECANCELED"
	Msg   string // human-readable message

	Slot     int           // ARG only: 1-based argument position, 0 if n/a
	WantType string        // ARG only: expected type description
	Errno    syscall.Errno // SYS only: originating errno, 0 if none
	Inner    error         // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Class, e.Name)
	}
	return fmt.Sprintf("%s: %s: %s", e.Class, e.Name, e.Msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == te.Class && e.Name == te.Name
}

// Status is the tri-tuple projection from spec.md §4.11: a SYS-class
// failure crosses the bridge as three values, (nil, "NAME: message", NAME).
func (e *Error) Status() (any, string, string) {
	if e.Msg == "" {
		return nil, e.Name, e.Name
	}
	return nil, e.Name + ": " + e.Msg, e.Name
}

// NewSysError builds a SYS-class error from a canonical name and message.
func NewSysError(name, msg string) *Error {
	return &Error{Class: ClassSys, Name: name, Msg: msg}
}

// NewArgError builds an ARG-class error describing a bad call argument.
func NewArgError(slot int, wantType, msg string) *Error {
	return &Error{Class: ClassArg, Name: "EINVAL", Msg: msg, Slot: slot, WantType: wantType}
}

// NewStateError builds a STATE-class error for an operation invalid in the
// handle or request's current lifecycle state.
func NewStateError(op, msg string) *Error {
	return &Error{Class: ClassState, Name: op, Msg: msg}
}

// NewWorkerError wraps a thread-pool item failure as a WORKER-class error.
func NewWorkerError(inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Class: ClassWorker, Name: "WORKER", Msg: inner.Error(), Inner: inner}
}

// NewUncaughtError wraps a loop-callback panic or error as UNCAUGHT, the way
// the Context's pcall policy does (spec.md §7).
func NewUncaughtError(inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Class: ClassUncaught, Name: "UNCAUGHT", Msg: inner.Error(), Inner: inner}
}

// WrapSysError maps a syscall-level error to a SYS-class *Error, preserving
// errno for callers that need it (e.g. deciding whether to retry on EAGAIN).
func WrapSysError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ue, ok := inner.(*Error); ok {
		return ue
	}
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		name := errnoName(errno)
		return &Error{Class: ClassSys, Name: name, Msg: errnoMessage(op, errno), Errno: errno, Inner: inner}
	}
	return &Error{Class: ClassSys, Name: "UNKNOWN", Msg: inner.Error(), Inner: inner}
}

func errnoMessage(op string, errno syscall.Errno) string {
	if op == "" {
		return errno.Error()
	}
	return fmt.Sprintf("%s: %s", op, errno.Error())
}

// errnoName maps an errno to the canonical short symbol used in the
// tri-tuple projection (spec.md §4.11, §6). Errnos missing from the table
// below map to an "ERRNO<n>" tag carrying the numeric value.
func errnoName(errno syscall.Errno) string {
	switch errno {
	case syscall.EAGAIN:
		return "EAGAIN"
	case syscall.ECANCELED:
		return "ECANCELED"
	case syscall.EADDRINUSE:
		return "EADDRINUSE"
	case syscall.EADDRNOTAVAIL:
		return "EADDRNOTAVAIL"
	case syscall.ECONNABORTED:
		return "ECONNABORTED"
	case syscall.ECONNREFUSED:
		return "ECONNREFUSED"
	case syscall.ECONNRESET:
		return "ECONNRESET"
	case syscall.EPIPE:
		return "EPIPE"
	case syscall.EMFILE:
		return "EMFILE"
	case syscall.ENFILE:
		return "ENFILE"
	case syscall.EINTR:
		return "EINTR"
	case syscall.ENOENT:
		return "ENOENT"
	case syscall.EEXIST:
		return "EEXIST"
	case syscall.EACCES:
		return "EACCES"
	case syscall.EPERM:
		return "EPERM"
	case syscall.EINVAL:
		return "EINVAL"
	case syscall.ENOTDIR:
		return "ENOTDIR"
	case syscall.EISDIR:
		return "EISDIR"
	case syscall.ENOSPC:
		return "ENOSPC"
	case syscall.ETIMEDOUT:
		return "ETIMEDOUT"
	case syscall.ENOTCONN:
		return "ENOTCONN"
	case syscall.ENOSYS:
		return "ENOSYS"
	default:
		return fmt.Sprintf("ERRNO%d", int(errno))
	}
}

// IsClass reports whether err is a *Error of the given class.
func IsClass(err error, class Class) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Class == class
	}
	return false
}

// IsName reports whether err is a *Error with the given canonical name.
func IsName(err error, name string) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Name == name
	}
	return false
}

// IsEOF reports whether err is the canonical EOF status (spec.md §7's EOF
// symbol, distinct from Go's io.EOF even though streams also return it).
func IsEOF(err error) bool { return IsName(err, "EOF") }

// ErrEOF is the canonical SYS-class EOF status pushed on stream end.
var ErrEOF = NewSysError("EOF", "end of file")
