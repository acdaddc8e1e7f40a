package uvbridge

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSysErrorStatusTriTuple(t *testing.T) {
	err := NewSysError("EAGAIN", "resource temporarily unavailable")
	v, msg, name := err.Status()
	assert.Nil(t, v)
	assert.Equal(t, "EAGAIN: resource temporarily unavailable", msg)
	assert.Equal(t, "EAGAIN", name)
}

func TestArgErrorFields(t *testing.T) {
	err := NewArgError(2, "string", "expected a string")
	assert.Equal(t, ClassArg, err.Class)
	assert.Equal(t, 2, err.Slot)
	assert.Equal(t, "string", err.WantType)
}

func TestStateErrorMessage(t *testing.T) {
	err := NewStateError("shutdown", "stream already shut down")
	assert.Equal(t, "STATE: shutdown: stream already shut down", err.Error())
}

func TestWorkerErrorWrapsInner(t *testing.T) {
	inner := errors.New("disk full")
	err := NewWorkerError(inner)
	assert.Equal(t, ClassWorker, err.Class)
	assert.ErrorIs(t, err, err) // Is() matches itself by class+name
	assert.Equal(t, inner, err.Unwrap())
}

func TestWrapSysErrorMapsErrno(t *testing.T) {
	err := WrapSysError("read", syscall.ECONNRESET)
	assert.Equal(t, "ECONNRESET", err.Name)
	assert.Equal(t, syscall.ECONNRESET, err.Errno)
}

func TestWrapSysErrorPassesThroughExisting(t *testing.T) {
	orig := NewSysError("EMFILE", "too many open files")
	wrapped := WrapSysError("accept", orig)
	assert.Same(t, orig, wrapped)
}

func TestIsClassAndIsName(t *testing.T) {
	err := NewSysError("EPIPE", "broken pipe")
	assert.True(t, IsClass(err, ClassSys))
	assert.False(t, IsClass(err, ClassArg))
	assert.True(t, IsName(err, "EPIPE"))
	assert.False(t, IsName(err, "EAGAIN"))
}

func TestIsClassNilError(t *testing.T) {
	assert.False(t, IsClass(nil, ClassSys))
}

func TestErrEOF(t *testing.T) {
	assert.True(t, IsEOF(ErrEOF))
	assert.False(t, IsEOF(NewSysError("EAGAIN", "x")))
}

func TestErrnoNameFallback(t *testing.T) {
	err := WrapSysError("", syscall.Errno(9999))
	assert.Equal(t, "ERRNO9999", err.Name)
}
