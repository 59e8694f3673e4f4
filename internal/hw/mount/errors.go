package mount

import (
	"errors"
	"fmt"
)

// ErrReadTimeout is returned by a Transport when nothing arrives within its
// read timeout.
var ErrReadTimeout = errors.New("read timeout")

// ClosedError means no transport is attached. It is not retried; callers
// treat it as "no mount" and carry on without motion.
type ClosedError struct{}

func (e *ClosedError) Error() string { return "mount: no transport attached" }

// ProtocolError means the mount answered but the reply did not match the
// expected content or length. The link is probably out of sync.
type ProtocolError struct {
	Op   string
	Want string
	Got  []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mount %s: unexpected reply %q (want %q)", e.Op, e.Got, e.Want)
}

// TransportError wraps an I/O failure, a timeout or a stream closed in the
// middle of an exchange.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mount %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsClosed reports whether err is, or wraps, a *ClosedError.
func IsClosed(err error) bool {
	var e *ClosedError
	return errors.As(err, &e)
}

// IsProtocol reports whether err is, or wraps, a *ProtocolError.
func IsProtocol(err error) bool {
	var e *ProtocolError
	return errors.As(err, &e)
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}
