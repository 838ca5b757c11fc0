package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/cbodonnell/lockstep/pkg/log"
	"nhooyr.io/websocket"
)

// WSListener accepts WebSocket connections and exposes each one as a
// byte stream carrying the same frames as TCP.
type WSListener struct {
	listener  net.Listener
	server    *http.Server
	conns     chan net.Conn
	closed    chan struct{}
	closeOnce sync.Once
	readLimit int64
}

// ListenWS serves WebSocket upgrades on address.
func ListenWS(ctx context.Context, address string, maxFrameSize int) (*WSListener, error) {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on WebSocket address %s: %w", address, err)
	}
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	l := &WSListener{
		listener:  listener,
		conns:     make(chan net.Conn),
		closed:    make(chan struct{}),
		readLimit: int64(maxFrameSize + FrameHeaderSize),
	}
	l.server = &http.Server{Handler: http.HandlerFunc(l.handleUpgrade)}

	go func() {
		if err := l.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("WebSocket server error: %v", err)
		}
	}()
	return l, nil
}

func (l *WSListener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}
	c.SetReadLimit(l.readLimit)
	log.Debug("New WebSocket connection from %s", r.RemoteAddr)

	// the stream outlives the request that upgraded it
	conn := websocket.NetConn(context.Background(), c, websocket.MessageBinary)
	select {
	case l.conns <- conn:
	case <-l.closed:
		c.Close(websocket.StatusGoingAway, "listener closed")
	}
}

func (l *WSListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.closed:
		return nil, ErrConnectionClosed
	}
}

func (l *WSListener) Addr() string {
	return l.listener.Addr().String()
}

// Close stops accepting upgrades. Accepted connections stay open until
// their owners close them.
func (l *WSListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.server.Close()
	})
	return err
}

// DialWS opens a WebSocket to address and returns it as a byte stream.
func DialWS(ctx context.Context, address string, maxFrameSize int) (net.Conn, error) {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	c, _, err := websocket.Dial(ctx, "ws://"+address+"/", nil)
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(int64(maxFrameSize + FrameHeaderSize))
	return websocket.NetConn(context.Background(), c, websocket.MessageBinary), nil
}
