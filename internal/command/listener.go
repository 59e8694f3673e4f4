package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/team997coders/hatchtracker/internal/debug"
)

// DefaultAddr is where the driver station connects.
const DefaultAddr = ":2222"

// Listener accepts one command connection at a time and posts each decoded
// command to a Mailbox.
type Listener struct {
	ln  net.Listener
	box *Mailbox
}

// Listen opens the command port.
func Listen(addr string, box *Mailbox) (*Listener, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("open command port %s: %w", addr, err)
	}
	return &Listener{ln: ln, box: box}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts connections until ctx is cancelled or the listener is
// closed, then returns nil. When a connection drops it waits for the next
// one.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.ln.Close() })
	defer stop()

	for {
		debug.Info("Awaiting command connection on %s", l.ln.Addr())
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept command connection: %w", err)
		}
		l.handle(ctx, conn)
	}
}

// Close stops accepting connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

func (l *Listener) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	debug.Info("Command connection established from %s", conn.RemoteAddr())

	var dec Decoder
	r := bufio.NewReader(conn)
	for {
		c, err := r.ReadByte()
		if err != nil {
			debug.Info("Command connection closed: %v", err)
			return
		}
		if cmd, ok := dec.Feed(c); ok {
			debug.Live("command %s", cmd)
			l.box.Put(cmd)
		}
	}
}
