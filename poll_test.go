package uvbridge

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollDetectsReadableFd(t *testing.T) {
	r, w, err := os.Pipe()
	assert.NoError(t, err)
	defer w.Close()

	ctx := NewContext()
	p, err := NewPoll(ctx, int(r.Fd()))
	assert.NoError(t, err)

	events := make(chan string, 1)
	assert.NoError(t, p.Start(PollOptions{Readable: true}, func(err error, ev string) {
		select {
		case events <- ev:
		default:
		}
	}))

	_, err = w.Write([]byte("x"))
	assert.NoError(t, err)

	deadline := time.After(2 * time.Second)
	drained := false
	for !drained {
		ctx.Run(RunNoWait)
		select {
		case ev := <-events:
			assert.Contains(t, ev, "r")
			drained = true
		case <-deadline:
			t.Fatal("timed out waiting for poll readable event")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	assert.NoError(t, p.Close(nil))
	r.Close()
}

func TestPollRejectsInvalidFd(t *testing.T) {
	ctx := NewContext()
	_, err := NewPoll(ctx, -1)
	assert.Error(t, err)
}
