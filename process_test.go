package uvbridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpawnCapturesStdoutAndExitStatus(t *testing.T) {
	ctx := NewContext()
	stdout := NewPipe(ctx, false)

	exited := make(chan struct{}, 1)
	var status, sig int
	proc, err := Spawn(ctx, "/bin/echo", SpawnOptions{
		Args:  []string{"hello"},
		Stdio: [3]*Pipe{nil, stdout, nil},
	}, func(s, g int) {
		status, sig = s, g
		exited <- struct{}{}
	})
	assert.NoError(t, err)
	assert.Greater(t, proc.Pid(), 0)

	output := make(chan []byte, 1)
	assert.NoError(t, stdout.ReadStart(func(err error, chunk []byte) {
		if chunk != nil {
			output <- chunk
		}
	}))

	deadline := time.After(3 * time.Second)
	var collected []byte
	done := false
	for !done {
		ctx.Run(RunNoWait)
		select {
		case chunk := <-output:
			collected = append(collected, chunk...)
		case <-exited:
			done = true
		case <-deadline:
			t.Fatal("timed out waiting for process exit")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	assert.Equal(t, 0, status)
	assert.Equal(t, 0, sig)
	assert.Contains(t, string(collected), "hello")

	assert.NoError(t, proc.Close(nil))
	assert.NoError(t, stdout.Close(nil))
}

func TestSpawnRejectsUnknownBinary(t *testing.T) {
	ctx := NewContext()
	_, err := Spawn(ctx, "/no/such/binary-xyz", SpawnOptions{}, func(int, int) {})
	assert.Error(t, err)
	assert.True(t, IsClass(err, ClassSys))
}

func TestProcessKillRequiresValidSignalName(t *testing.T) {
	ctx := NewContext()
	proc, err := Spawn(ctx, "/bin/sleep", SpawnOptions{Args: []string{"5"}}, func(int, int) {})
	assert.NoError(t, err)

	err = proc.Kill("SIGBOGUS")
	assert.Error(t, err)
	assert.True(t, IsClass(err, ClassArg))

	assert.NoError(t, proc.Kill("SIGKILL"))
	assert.NoError(t, proc.Close(nil))
}
