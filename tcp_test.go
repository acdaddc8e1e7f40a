package uvbridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTCPEchoRoundTrip(t *testing.T) {
	ctx := NewContext()

	server := NewTCP(ctx)
	assert.NoError(t, server.Bind("127.0.0.1", 0))
	addr, err := server.GetSockName()
	assert.NoError(t, err)

	accepted := make(chan *TCP, 1)
	assert.NoError(t, server.Listen(128, func(err error) {
		assert.NoError(t, err)
		client := NewTCP(ctx)
		if acceptErr := server.Accept(client); acceptErr == nil {
			accepted <- client
		}
	}))

	clientConn := NewTCP(ctx)
	connectDone := make(chan error, 1)
	_, err = clientConn.Connect("127.0.0.1", addr.Port, func(err error) {
		connectDone <- err
	})
	assert.NoError(t, err)

	deadline := time.After(2 * time.Second)
	pump := func(done <-chan struct{}) {
		for {
			ctx.Run(RunNoWait)
			select {
			case <-done:
				return
			case <-deadline:
				t.Fatal("timed out waiting for TCP round trip")
			default:
				time.Sleep(5 * time.Millisecond)
			}
		}
	}

	connected := make(chan struct{})
	go func() {
		err := <-connectDone
		assert.NoError(t, err)
		close(connected)
	}()
	pump(connected)

	var serverSide *TCP
	serverReady := make(chan struct{})
	go func() {
		serverSide = <-accepted
		close(serverReady)
	}()
	pump(serverReady)

	received := make(chan []byte, 1)
	assert.NoError(t, serverSide.ReadStart(func(err error, chunk []byte) {
		if chunk != nil {
			received <- chunk
		}
	}))

	_, err = clientConn.Write([][]byte{[]byte("ping")}, func(err error) { assert.NoError(t, err) })
	assert.NoError(t, err)

	gotData := make(chan struct{})
	go func() {
		data := <-received
		assert.Equal(t, "ping", string(data))
		close(gotData)
	}()
	pump(gotData)

	assert.NoError(t, clientConn.Close(nil))
	assert.NoError(t, serverSide.Close(nil))
	assert.NoError(t, server.Close(nil))
}

func TestTCPGetSockNameBeforeBindFails(t *testing.T) {
	ctx := NewContext()
	tcp := NewTCP(ctx)
	_, err := tcp.GetSockName()
	assert.Error(t, err)
	assert.True(t, IsClass(err, ClassState))
}

func TestTCPWriteQueueSizeIsZeroBeforeAnyWrite(t *testing.T) {
	ctx := NewContext()
	server := NewTCP(ctx)
	assert.NoError(t, server.Bind("127.0.0.1", 0))
	addr, _ := server.GetSockName()

	accepted := make(chan struct{}, 1)
	serverClient := NewTCP(ctx)
	assert.NoError(t, server.Listen(128, func(err error) {
		if server.Accept(serverClient) == nil {
			accepted <- struct{}{}
		}
	}))

	client := NewTCP(ctx)
	connectDone := make(chan struct{}, 1)
	_, err := client.Connect("127.0.0.1", addr.Port, func(err error) { connectDone <- struct{}{} })
	assert.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		ctx.Run(RunNoWait)
		select {
		case <-connectDone:
			goto connected
		case <-deadline:
			t.Fatal("timed out connecting")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
connected:

	assert.Equal(t, 0, client.WriteQueueSize())
	assert.NoError(t, server.Close(nil))
	assert.NoError(t, serverClient.Close(nil))
	assert.NoError(t, client.Close(nil))
}
