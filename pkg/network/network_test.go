package network

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbodonnell/lockstep/pkg/log"
)

func testOptions() ConnectionOptions {
	return ConnectionOptions{
		HeartbeatInterval: 10 * time.Millisecond,
		SuspectAfter:      60 * time.Millisecond,
		LostAfter:         60 * time.Millisecond,
		WriteTimeout:      time.Second,
		Logger:            log.New(io.Discard, "", 0, log.LogLevelError),
	}
}

// chunkedReader returns at most one byte per Read.
type chunkedReader struct {
	r io.Reader
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return c.r.Read(p)
}

func TestFrame_PartialReads(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteFrame(buf, []byte("hello"), 0))
	require.NoError(t, WriteFrame(buf, []byte{}, 0))
	require.NoError(t, WriteFrame(buf, []byte("world"), 0))

	r := &chunkedReader{r: buf}
	for _, want := range []string{"hello", "", "world"} {
		got, err := ReadFrame(r, 0)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	_, err := ReadFrame(r, 0)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestFrame_TooLarge(t *testing.T) {
	buf := &bytes.Buffer{}
	err := WriteFrame(buf, make([]byte, 16), 8)
	assert.True(t, IsFrameTooLarge(err))
	assert.Equal(t, 0, buf.Len())

	require.NoError(t, WriteFrame(buf, make([]byte, 16), 0))
	_, err = ReadFrame(buf, 8)
	assert.True(t, IsFrameTooLarge(err))
}

func TestFrame_TruncatedBody(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteFrame(buf, []byte("truncated"), 0))
	data := buf.Bytes()[:buf.Len()-3]

	_, err := ReadFrame(bytes.NewReader(data), 0)
	assert.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func pipe(t *testing.T, opts ConnectionOptions) (*Connection, *Connection) {
	a, b := net.Pipe()
	left := NewConnection(a, opts)
	right := NewConnection(b, opts)
	t.Cleanup(func() {
		left.Abort()
		right.Abort()
	})
	return left, right
}

func receive(t *testing.T, c *Connection) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b, err := c.Receive(ctx)
	require.NoError(t, err)
	return b
}

func TestConnection_SendReceive(t *testing.T) {
	left, right := pipe(t, testOptions())

	_, err := right.TryReceive()
	assert.ErrorIs(t, err, ErrWouldBlock)

	require.NoError(t, left.Send([]byte{2, 1, 2, 3}))
	require.NoError(t, left.Send([]byte{3}))

	assert.Equal(t, []byte{2, 1, 2, 3}, receive(t, right))
	assert.Equal(t, []byte{3}, receive(t, right))
	assert.Equal(t, LivenessConnected, right.Liveness())
	assert.NotZero(t, right.BytesIn())
}

func TestConnection_Attributes(t *testing.T) {
	left, _ := pipe(t, testOptions())
	left.SetPeerID(4)
	left.SetLastReceivedTick(99)
	assert.Equal(t, uint32(4), left.PeerID())
	assert.Equal(t, uint64(99), left.LastReceivedTick())
}

func TestConnection_LivenessDegrades(t *testing.T) {
	_, right := pipe(t, testOptions())
	assert.Equal(t, LivenessConnected, right.Liveness())

	assert.Eventually(t, func() bool {
		return right.Liveness() == LivenessSuspect
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return right.Liveness() == LivenessLost
	}, time.Second, 5*time.Millisecond)
}

func TestConnection_HeartbeatsKeepAlive(t *testing.T) {
	opts := testOptions()
	opts.Heartbeat = func() []byte { return []byte{3} }
	left, right := pipe(t, opts)

	time.Sleep(3 * opts.SuspectAfter)
	assert.Equal(t, LivenessConnected, right.Liveness())
	assert.Equal(t, LivenessConnected, left.Liveness())

	b := receive(t, right)
	assert.Equal(t, []byte{3}, b)
}

func TestConnection_CloseFlushesAndUnblocks(t *testing.T) {
	left, right := pipe(t, testOptions())

	require.NoError(t, left.Send([]byte("last words")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got := make(chan []byte, 1)
	go func() {
		b, _ := right.Receive(ctx)
		got <- b
	}()

	require.NoError(t, left.Close())
	assert.Equal(t, []byte("last words"), <-got)

	assert.ErrorIs(t, left.Send([]byte("late")), ErrConnectionClosed)
	assert.Equal(t, LivenessLost, left.Liveness())

	_, err := right.Receive(ctx)
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.Equal(t, LivenessLost, right.Liveness())
}

func TestConnection_SendQueueFull(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	opts := testOptions()
	opts.SendQueueSize = 1
	c := NewConnection(a, opts)
	defer c.Abort()

	// nobody reads b, so the writer blocks on the first frame
	var err error
	for i := 0; i < 10 && err == nil; i++ {
		err = c.Send([]byte("x"))
	}
	assert.ErrorIs(t, err, ErrSendQueueFull)
}

func testTransport(t *testing.T, transport string) {
	ctx := context.Background()
	listener, err := Listen(ctx, transport, "127.0.0.1:0", 0)
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := Dial(ctx, transport, listener.Addr(), time.Second, testOptions())
	require.NoError(t, err)
	defer client.Abort()

	var server *Connection
	select {
	case conn := <-accepted:
		server = NewConnection(conn, testOptions())
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
	}
	defer server.Abort()

	payload := bytes.Repeat([]byte{7}, 70000)
	require.NoError(t, client.Send(payload))
	assert.Equal(t, payload, receive(t, server))

	require.NoError(t, server.Send([]byte("pong")))
	assert.Equal(t, []byte("pong"), receive(t, client))
}

func TestTCPTransport(t *testing.T) {
	testTransport(t, TransportTCP)
}

func TestWebSocketTransport(t *testing.T) {
	testTransport(t, TransportWebSocket)
}

func TestDial_Refused(t *testing.T) {
	listener, err := ListenTCP(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr()
	require.NoError(t, listener.Close())

	_, err = Dial(context.Background(), TransportTCP, addr, 500*time.Millisecond, testOptions())
	var connectErr *ConnectError
	require.ErrorAs(t, err, &connectErr)
	assert.Equal(t, addr, connectErr.Address)
}

func TestListener_CloseUnblocksAccept(t *testing.T) {
	for _, transport := range []string{TransportTCP, TransportWebSocket} {
		t.Run(transport, func(t *testing.T) {
			listener, err := Listen(context.Background(), transport, "127.0.0.1:0", 0)
			require.NoError(t, err)

			done := make(chan error, 1)
			go func() {
				_, err := listener.Accept()
				done <- err
			}()
			require.NoError(t, listener.Close())
			select {
			case err := <-done:
				assert.ErrorIs(t, err, ErrConnectionClosed)
			case <-time.After(time.Second):
				t.Fatal("accept did not return")
			}
		})
	}
}
