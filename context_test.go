package uvbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRunOnceDrainsTimers(t *testing.T) {
	ctx := NewContext()
	timer := NewTimer(ctx)
	fired := false
	assert.NoError(t, timer.Start(0, 0, func() { fired = true }))

	ctx.Run(RunOnce)
	assert.True(t, fired)
}

func TestContextWalkVisitsLiveHandles(t *testing.T) {
	ctx := NewContext()
	t1 := NewTimer(ctx)
	t2 := NewTimer(ctx)
	_ = t2

	seen := 0
	ctx.Walk(func(h *Handle) { seen++ })
	assert.Equal(t, 2, seen)

	assert.NoError(t, t1.Close(nil))
	seen = 0
	ctx.Walk(func(h *Handle) { seen++ })
	assert.Equal(t, 1, seen)
}

func TestContextLoopCloseRejectsOpenHandles(t *testing.T) {
	ctx := NewContext()
	timer := NewTimer(ctx)
	err := ctx.LoopClose()
	assert.Error(t, err)
	assert.True(t, IsClass(err, ClassState))

	assert.NoError(t, timer.Close(nil))
	assert.NoError(t, ctx.LoopClose())
}

func TestContextConfigureBlockSignal(t *testing.T) {
	ctx := NewContext()
	assert.NoError(t, ctx.Configure(ConfigureBlockSignal, "SIGHUP"))
	err := ctx.Configure(ConfigureBlockSignal, 42)
	assert.Error(t, err)
	assert.True(t, IsClass(err, ClassArg))
}

func TestContextConfigureUnknownOption(t *testing.T) {
	ctx := NewContext()
	err := ctx.Configure(ConfigureOption("bogus"), true)
	assert.Error(t, err)
	assert.True(t, IsClass(err, ClassArg))
}

func TestContextUncaughtHandlerReceivesPanics(t *testing.T) {
	var caught *Error
	ctx := NewContext(WithUncaughtHandler(func(err *Error) { caught = err }))
	timer := NewTimer(ctx)
	assert.NoError(t, timer.Start(0, 0, func() { panic("boom") }))

	ctx.Run(RunOnce)
	assert.NotNil(t, caught)
	assert.Equal(t, ClassUncaught, caught.Class)
}

func TestContextMetricsTracksTimerFires(t *testing.T) {
	ctx := NewContext()
	timer := NewTimer(ctx)
	assert.NoError(t, timer.Start(0, 0, func() {}))
	ctx.Run(RunOnce)

	snap := ctx.Metrics()
	assert.Equal(t, uint64(1), snap.TimerFires)
}
