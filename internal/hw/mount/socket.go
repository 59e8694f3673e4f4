package mount

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// SocketLink is a Transport over TCP, for a mount hosted by another process
// on the robot network.
type SocketLink struct {
	conn    net.Conn
	timeout time.Duration
}

// DialSocket connects to addr with Nagle disabled so single command bytes
// are not held back.
func DialSocket(ctx context.Context, addr string) (*SocketLink, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial mount socket %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("disable nagle on %s: %w", addr, err)
		}
	}
	return NewSocketLink(conn), nil
}

// NewSocketLink wraps an established connection.
func NewSocketLink(conn net.Conn) *SocketLink {
	return &SocketLink{conn: conn, timeout: DefaultReadTimeout}
}

func (l *SocketLink) Read(p []byte) (int, error) {
	if l.timeout > 0 {
		if err := l.conn.SetReadDeadline(time.Now().Add(l.timeout)); err != nil {
			return 0, err
		}
	}
	n, err := l.conn.Read(p)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, ErrReadTimeout
	}
	return n, err
}

func (l *SocketLink) Write(p []byte) (int, error) {
	return l.conn.Write(p)
}

func (l *SocketLink) SetReadTimeout(d time.Duration) error {
	l.timeout = d
	return nil
}

func (l *SocketLink) Close() error {
	return l.conn.Close()
}
