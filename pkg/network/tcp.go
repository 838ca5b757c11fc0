package network

import (
	"context"
	"fmt"
	"net"
)

// TCPListener accepts plain TCP connections.
type TCPListener struct {
	listener net.Listener
}

// ListenTCP listens on address, e.g. ":8888" or "127.0.0.1:0".
func ListenTCP(ctx context.Context, address string) (*TCPListener, error) {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on TCP address %s: %w", address, err)
	}
	return &TCPListener{listener: listener}, nil
}

func (l *TCPListener) Accept() (net.Conn, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		if isClosedError(err) {
			return nil, ErrConnectionClosed
		}
		return nil, fmt.Errorf("failed to accept TCP connection: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}
	return conn, nil
}

func (l *TCPListener) Addr() string {
	return l.listener.Addr().String()
}

func (l *TCPListener) Close() error {
	return l.listener.Close()
}

// DialTCP connects to address until ctx is done.
func DialTCP(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}
	return conn, nil
}
