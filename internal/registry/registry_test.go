package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaPinUnpin(t *testing.T) {
	a := NewArena[int]()
	id := NewID()
	a.Pin(id, 42)
	assert.Equal(t, 1, a.Len())

	v, ok := a.Get(id)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	a.Unpin(id)
	assert.Equal(t, 0, a.Len())
	_, ok = a.Get(id)
	assert.False(t, ok)
}

func TestArenaEachIsSnapshot(t *testing.T) {
	a := NewArena[string]()
	id1, id2 := NewID(), NewID()
	a.Pin(id1, "one")
	a.Pin(id2, "two")

	var mu sync.Mutex
	seen := map[string]string{}
	a.Each(func(id string, v string) {
		mu.Lock()
		seen[id] = v
		mu.Unlock()
		a.Unpin(id) // must not deadlock
	})
	assert.Len(t, seen, 2)
	assert.Equal(t, 0, a.Len())
}

func TestRequestSetupFulfillCleanup(t *testing.T) {
	reqs := NewRequests()
	var got []any
	rec := reqs.Setup(FuncContinuation(func(args ...any) { got = args }))
	assert.Equal(t, 1, reqs.Count())

	reqs.Fulfill(rec, nil, "ok", nil)
	assert.Equal(t, []any{"ok", nil}, got)

	reqs.Cleanup(rec)
	assert.Equal(t, 0, reqs.Count())
	assert.Nil(t, rec.Aux)
}

func TestRequestNoneContinuationDiscardsArgs(t *testing.T) {
	reqs := NewRequests()
	rec := reqs.Setup(NoContinuation())
	assert.NotPanics(t, func() { reqs.Fulfill(rec, nil, 1, 2, 3) })
	reqs.Cleanup(rec)
}

func TestRequestCallableContinuationPanicReported(t *testing.T) {
	reqs := NewRequests()
	rec := reqs.Setup(FuncContinuation(func(args ...any) { panic("boom") }))
	var uncaught error
	reqs.Fulfill(rec, func(err error) { uncaught = err }, nil)
	require.Error(t, uncaught)
	assert.Contains(t, uncaught.Error(), "boom")
}

func TestCoroutineYieldThenReturn(t *testing.T) {
	var seenFirst, seenResumed []any
	co := NewCoroutine(func(yield func(args ...any) []any, first []any) error {
		seenFirst = first
		resumed := yield("paused")
		seenResumed = resumed
		return nil
	})

	err := co.Resume("start")
	require.NoError(t, err)
	assert.Equal(t, []any{"start"}, seenFirst)
	assert.Equal(t, CoroutineSuspended, co.State())

	err = co.Resume("continue")
	require.NoError(t, err)
	assert.Equal(t, []any{"continue"}, seenResumed)
	assert.True(t, co.IsDead())
}

func TestCoroutineResumeAfterDeadIsError(t *testing.T) {
	co := NewCoroutine(func(yield func(args ...any) []any, first []any) error {
		return nil
	})
	require.NoError(t, co.Resume())
	assert.True(t, co.IsDead())
	err := co.Resume()
	assert.Error(t, err)
}

func TestCoroutineErrorPropagatesThroughResume(t *testing.T) {
	wantErr := errors.New("boom")
	co := NewCoroutine(func(yield func(args ...any) []any, first []any) error {
		return wantErr
	})
	err := co.Resume()
	assert.ErrorIs(t, err, wantErr)
	assert.True(t, co.IsDead())
}

func TestCoroutineContinuationFulfill(t *testing.T) {
	var resumedWith []any
	co := NewCoroutine(func(yield func(args ...any) []any, first []any) error {
		resumedWith = first
		return nil
	})
	c := CoroutineContinuation(co)
	c.Fulfill(nil, "a", "b")
	assert.Equal(t, []any{"a", "b"}, resumedWith)
}
