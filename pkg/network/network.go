package network

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Transports
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
)

// ConnectError is returned when a connection cannot be established.
type ConnectError struct {
	Transport string
	Address   string
	Err       error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to %s over %s: %v", e.Address, e.Transport, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Listener produces incoming stream connections.
type Listener interface {
	// Accept blocks until a connection arrives or the listener is closed.
	Accept() (net.Conn, error)
	// Addr returns the address the listener is bound to.
	Addr() string
	Close() error
}

// Listen binds address with the given transport.
func Listen(ctx context.Context, transport string, address string, maxFrameSize int) (Listener, error) {
	switch transport {
	case TransportTCP, "":
		return ListenTCP(ctx, address)
	case TransportWebSocket:
		return ListenWS(ctx, address, maxFrameSize)
	default:
		return nil, fmt.Errorf("unknown transport %s", transport)
	}
}

// DialConn opens a raw stream to address, bounded by timeout.
func DialConn(ctx context.Context, transport string, address string, timeout time.Duration, maxFrameSize int) (net.Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var conn net.Conn
	var err error
	switch transport {
	case TransportTCP, "":
		conn, err = DialTCP(ctx, address)
	case TransportWebSocket:
		conn, err = DialWS(ctx, address, maxFrameSize)
	default:
		err = fmt.Errorf("unknown transport %s", transport)
	}
	if err != nil {
		return nil, &ConnectError{Transport: transport, Address: address, Err: err}
	}
	return conn, nil
}

// Dial connects to address and wraps the stream in a Connection.
func Dial(ctx context.Context, transport string, address string, timeout time.Duration, opts ConnectionOptions) (*Connection, error) {
	conn, err := DialConn(ctx, transport, address, timeout, opts.MaxFrameSize)
	if err != nil {
		return nil, err
	}
	return NewConnection(conn, opts), nil
}
