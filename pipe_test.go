package uvbridge

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPipeBindConnectWrite(t *testing.T) {
	ctx := NewContext()
	sockPath := filepath.Join(t.TempDir(), "test.sock")

	server := NewPipe(ctx, false)
	assert.NoError(t, server.Bind(sockPath))

	accepted := make(chan struct{}, 1)
	serverSide := NewPipe(ctx, false)
	assert.NoError(t, server.Listen(16, func(err error) {
		assert.NoError(t, err)
		if server.Accept(serverSide) == nil {
			accepted <- struct{}{}
		}
	}))

	client := NewPipe(ctx, false)
	connectDone := make(chan struct{}, 1)
	_, err := client.Connect(sockPath, func(err error) {
		assert.NoError(t, err)
		connectDone <- struct{}{}
	})
	assert.NoError(t, err)

	deadline := time.After(2 * time.Second)
	waitFor := func(ch <-chan struct{}) {
		for {
			ctx.Run(RunNoWait)
			select {
			case <-ch:
				return
			case <-deadline:
				t.Fatal("timed out waiting for pipe handshake")
			default:
				time.Sleep(5 * time.Millisecond)
			}
		}
	}
	waitFor(connectDone)
	waitFor(accepted)

	received := make(chan []byte, 1)
	assert.NoError(t, serverSide.ReadStart(func(err error, chunk []byte) {
		if chunk != nil {
			received <- chunk
		}
	}))
	_, err = client.Write([][]byte{[]byte("ipc")}, nil)
	assert.NoError(t, err)

	gotData := make(chan struct{})
	go func() {
		data := <-received
		assert.Equal(t, "ipc", string(data))
		close(gotData)
	}()
	waitFor(gotData)

	assert.NoError(t, client.Close(nil))
	assert.NoError(t, serverSide.Close(nil))
	assert.NoError(t, server.Close(nil))
}

func TestPipeOpenInvalidFd(t *testing.T) {
	ctx := NewContext()
	p := NewPipe(ctx, false)
	err := p.Open(-1)
	assert.Error(t, err)
	assert.True(t, IsClass(err, ClassArg))
}

func TestPipePendingInstancesIsStored(t *testing.T) {
	ctx := NewContext()
	p := NewPipe(ctx, false)
	p.PendingInstances(4)
	assert.Equal(t, 4, p.pendingInstances)
}
