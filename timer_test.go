package uvbridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerStartFiresOnce(t *testing.T) {
	ctx := NewContext()
	timer := NewTimer(ctx)
	fires := 0
	assert.NoError(t, timer.Start(0, 0, func() { fires++ }))

	ctx.Run(RunOnce)
	assert.Equal(t, 1, fires)
	assert.False(t, timer.IsActive())
}

func TestTimerRepeatFiresMultipleTimes(t *testing.T) {
	ctx := NewContext()
	timer := NewTimer(ctx)
	fires := 0
	assert.NoError(t, timer.Start(0, time.Millisecond, func() {
		fires++
		if fires >= 3 {
			timer.Stop()
		}
	}))

	for i := 0; i < 10 && timer.IsActive(); i++ {
		ctx.Run(RunOnce)
	}
	assert.GreaterOrEqual(t, fires, 3)
}

func TestTimerAgainRequiresPriorStart(t *testing.T) {
	ctx := NewContext()
	timer := NewTimer(ctx)
	err := timer.Again()
	assert.Error(t, err)
	assert.True(t, IsClass(err, ClassState))
}

func TestTimerSetRepeatGetRepeat(t *testing.T) {
	ctx := NewContext()
	timer := NewTimer(ctx)
	timer.SetRepeat(5 * time.Second)
	assert.Equal(t, 5*time.Second, timer.GetRepeat())
}

func TestTimerCloseWhileActive(t *testing.T) {
	ctx := NewContext()
	timer := NewTimer(ctx)
	assert.NoError(t, timer.Start(time.Hour, 0, func() {}))
	closed := false
	assert.NoError(t, timer.Close(func() { closed = true }))
	assert.True(t, closed)
	assert.False(t, ctx.LoopAlive())
}
