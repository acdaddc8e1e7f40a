package uvbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/behrlich/uvbridge/internal/registry"
)

func TestRequestFulfillInvokesContinuation(t *testing.T) {
	ctx := NewContext()
	var gotArgs []any
	req := newRequest(ctx, CallbackContinuation(func(args ...any) { gotArgs = args }))

	assert.True(t, ctx.LoopAlive())
	req.fulfill("a", 1)
	assert.Equal(t, []any{"a", 1}, gotArgs)
	assert.False(t, ctx.LoopAlive())
}

func TestRequestCancelFulfillsWithCancelledStatus(t *testing.T) {
	ctx := NewContext()
	var gotErr error
	req := newRequest(ctx, CallbackContinuation(func(args ...any) {
		if len(args) > 0 {
			gotErr, _ = args[0].(error)
		}
	}))

	req.Cancel()
	assert.ErrorIs(t, gotErr, ErrRequestCancelled)
	assert.False(t, ctx.LoopAlive())
}

func TestNoContinuationDiscardsArgs(t *testing.T) {
	ctx := NewContext()
	req := newRequest(ctx, NoContinuation())
	assert.NotPanics(t, func() { req.fulfill("whatever") })
}

func TestRequestCoroutineContinuationResumesOnFulfill(t *testing.T) {
	ctx := NewContext()
	var yielded, resumed []any
	co := NewCoroutine(func(yield func(args ...any) []any, first []any) error {
		yielded = first
		resumed = yield()
		return nil
	})

	// Drive the coroutine to its first yield before wiring it as a
	// request continuation, mirroring a script that starts a coroutine
	// and hands its suspended state to an async request.
	assert.NoError(t, co.Resume("start"))
	assert.Equal(t, []any{"start"}, yielded)
	assert.Equal(t, registry.CoroutineSuspended, co.State())

	req := newRequest(ctx, CoroutineContinuation(co))
	req.fulfill("done", 42)

	assert.Equal(t, []any{"done", 42}, resumed)
	assert.True(t, co.IsDead())
}
