package uvbridge

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/behrlich/uvbridge/internal/value"
)

func TestFSEventDetectsFileCreate(t *testing.T) {
	ctx := NewContext()
	dir := t.TempDir()
	ev := NewFSEvent(ctx)

	events := make(chan string, 4)
	assert.NoError(t, ev.Start(dir, FSEventOptions{}, func(err error, filename, kind string) {
		events <- kind
	}))

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		ctx.Run(RunNoWait)
		select {
		case kind := <-events:
			assert.Contains(t, kind, "change")
			assert.NoError(t, ev.Close(nil))
			return
		case <-deadline:
			t.Fatal("timed out waiting for fs_event")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestFSPollDetectsSizeChange(t *testing.T) {
	ctx := NewContext()
	path := filepath.Join(t.TempDir(), "polled.txt")
	assert.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	poll := NewFSPoll(ctx)
	changed := make(chan struct{}, 1)
	assert.NoError(t, poll.Start(path, 20, func(err error, prev, curr value.Stat) {
		if err == nil && curr.Size != prev.Size {
			select {
			case changed <- struct{}{}:
			default:
			}
		}
	}))

	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, os.WriteFile(path, []byte("abcdef"), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		ctx.Run(RunNoWait)
		select {
		case <-changed:
			assert.NoError(t, poll.Close(nil))
			return
		case <-deadline:
			t.Fatal("timed out waiting for fs_poll change")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
