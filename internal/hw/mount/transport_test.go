package mount

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveFirmware answers rate and center commands with Ok and the angle query
// with a centered position, one byte at a time.
func serveFirmware(conn net.Conn, greeting string) {
	defer conn.Close()
	if greeting != "" {
		if _, err := conn.Write([]byte(greeting)); err != nil {
			return
		}
	}
	b := make([]byte, 1)
	for {
		if _, err := conn.Read(b); err != nil {
			return
		}
		var reply string
		switch b[0] {
		case 'p', 't', 'c', 'r':
			reply = "Ok"
		case 'a':
			reply = "5A 5A"
		default:
			continue
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

func TestSocketLink_OverPipe(t *testing.T) {
	client, server := net.Pipe()
	go serveFirmware(server, "Ready")

	m := New(NewSocketLink(client))
	t.Cleanup(func() { m.Close() })

	require.NoError(t, m.Slew(-35, 60))
	angles, err := m.Angles()
	require.NoError(t, err)
	assert.Equal(t, Centered, angles)
}

func TestSocketLink_TimeoutIsTransportError(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { server.Close() })
	// Firmware that accepts bytes but never answers.
	go func() {
		b := make([]byte, 16)
		for {
			if _, err := server.Read(b); err != nil {
				return
			}
		}
	}()

	link := NewSocketLink(client)
	link.SetReadTimeout(20 * time.Millisecond)
	m := NewHandshaken(link)
	m.SetReadTimeout(20 * time.Millisecond)

	err := m.Center()
	assert.True(t, IsTransport(err), "got %v", err)
	assert.True(t, errors.Is(err, ErrReadTimeout))
}

func TestDialSocket(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		serveFirmware(conn, "")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	link, err := DialSocket(ctx, ln.Addr().String())
	require.NoError(t, err)

	m := New(link)
	t.Cleanup(func() { m.Close() })
	require.NoError(t, m.Center())
}

func TestDialSocket_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = DialSocket(context.Background(), addr)
	assert.Error(t, err)
}

func TestFinder_KeepsFirstAnsweringPort(t *testing.T) {
	silent := newScriptedLink("", nil)
	ready := newScriptedLink("Ready", firmware())
	links := map[string]*scriptedLink{
		"/dev/ttyS0":   silent,
		"/dev/ttyACM0": ready,
	}
	f := &Finder{
		List: func() ([]string, error) {
			return []string{"/dev/ttyUSB9", "/dev/ttyS0", "/dev/ttyACM0"}, nil
		},
		Open: func(name string) (Transport, error) {
			l, ok := links[name]
			if !ok {
				return nil, errors.New("permission denied")
			}
			return l, nil
		},
	}

	m, name, err := f.Find()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", name)
	assert.True(t, silent.closed, "non-answering port should be closed")
	assert.False(t, ready.closed)

	require.NoError(t, m.Center())
	assert.Equal(t, "c", ready.tx.String())
}

func TestFinder_NotFound(t *testing.T) {
	f := &Finder{
		List: func() ([]string, error) { return []string{"/dev/ttyS0"}, nil },
		Open: func(string) (Transport, error) { return newScriptedLink("", nil), nil },
	}
	_, _, err := f.Find()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinder_ListError(t *testing.T) {
	f := &Finder{
		List: func() ([]string, error) { return nil, errors.New("no sysfs") },
	}
	_, _, err := f.Find()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
