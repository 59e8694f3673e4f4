// Package mount speaks the pan/tilt mount's request/response protocol over a
// serial or socket link.
//
// Every command is a short ASCII string answered by exactly two bytes "Ok",
// except the angle query which answers five bytes. Only one command is ever
// in flight. The package never retries; that policy belongs to the caller.
package mount

import (
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/team997coders/hatchtracker/internal/debug"
)

// Wire constants understood by the mount firmware.
const (
	cmdReady   = 'r'
	cmdCenter  = 'c'
	cmdAngles  = 'a'
	suffixPan  = 'p'
	suffixTilt = 't'

	replyReady = "Ready"
	replyOk    = "Ok"

	anglesReplyLen = 5
	maxAngle       = 180

	// MaxPct bounds pan and tilt rate commands in both directions.
	MaxPct = 100

	// DefaultReadTimeout is the per-read timeout used for replies.
	DefaultReadTimeout = 100 * time.Millisecond
)

// Transport is a duplex byte link to the mount. Read must return
// ErrReadTimeout, or (0, nil), when nothing arrives within the read timeout.
type Transport interface {
	io.ReadWriter
	SetReadTimeout(d time.Duration) error
}

// Angles is the mount position in degrees, 0 to 180 with 90 centered.
type Angles struct {
	Pan  int `json:"pan"`
	Tilt int `json:"tilt"`
}

// Centered is the position reported by a mount at rest.
var Centered = Angles{Pan: 90, Tilt: 90}

// Mount issues commands over a Transport. The handshake runs lazily before
// the first command.
type Mount struct {
	mu      sync.Mutex
	link    Transport
	timeout time.Duration
	ready   bool
	last    Angles
}

// New returns a mount bound to link. A nil link yields a mount whose every
// command fails with *ClosedError.
func New(link Transport) *Mount {
	return &Mount{link: link, timeout: DefaultReadTimeout, last: Centered}
}

// NewHandshaken wraps a link that already completed the handshake, as the
// serial port finder leaves it.
func NewHandshaken(link Transport) *Mount {
	m := New(link)
	m.ready = true
	return m
}

// SetReadTimeout changes the per-read reply timeout.
func (m *Mount) SetReadTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = d
}

// Attached reports whether a transport is bound.
func (m *Mount) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.link != nil
}

// Last returns the angles from the most recent successful Angles call.
func (m *Mount) Last() Angles {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Close detaches the transport, closing it when it is an io.Closer.
func (m *Mount) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link := m.link
	m.link = nil
	m.ready = false
	if c, ok := link.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Handshake runs the link handshake now. The mount either announces "Ready"
// on its own within one read timeout, or answers 'r' with "Ok".
func (m *Mount) Handshake() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link == nil {
		return &ClosedError{}
	}
	return m.handshakeLocked()
}

func (m *Mount) handshakeLocked() error {
	if err := m.link.SetReadTimeout(m.timeout); err != nil {
		return &TransportError{Op: "handshake", Err: err}
	}
	got, err := m.read(len(replyReady))
	if err == nil && string(got) == replyReady {
		debug.Mount("handshake", "mount announced ready")
		m.ready = true
		return nil
	}
	if err != nil && !errors.Is(err, ErrReadTimeout) {
		return &TransportError{Op: "handshake", Err: err}
	}
	debug.Verbose("mount handshake: got %q, sending ready request", got)

	if err := m.exchange("handshake", []byte{cmdReady}, replyOk); err != nil {
		return err
	}
	debug.Mount("handshake", "mount acknowledged ready request")
	m.ready = true
	return nil
}

// prepare checks the link and performs the handshake once.
func (m *Mount) prepare() error {
	if m.link == nil {
		return &ClosedError{}
	}
	if m.ready {
		return nil
	}
	return m.handshakeLocked()
}

// Pan sets the pan rate in percent of full speed, clamped to [-100, 100].
func (m *Mount) Pan(pct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.prepare(); err != nil {
		return err
	}
	return m.exchange("pan", rateCommand(pct, suffixPan), replyOk)
}

// Tilt sets the tilt rate in percent of full speed, clamped to [-100, 100].
func (m *Mount) Tilt(pct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.prepare(); err != nil {
		return err
	}
	return m.exchange("tilt", rateCommand(pct, suffixTilt), replyOk)
}

// Slew sets both rates: pan first, then tilt once pan is acknowledged.
func (m *Mount) Slew(panPct, tiltPct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.prepare(); err != nil {
		return err
	}
	if err := m.exchange("slew pan", rateCommand(panPct, suffixPan), replyOk); err != nil {
		return err
	}
	return m.exchange("slew tilt", rateCommand(tiltPct, suffixTilt), replyOk)
}

// Stop sets both rates to zero.
func (m *Mount) Stop() error {
	return m.Slew(0, 0)
}

// Center drives the mount back to its rest position.
func (m *Mount) Center() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.prepare(); err != nil {
		return err
	}
	return m.exchange("center", []byte{cmdCenter}, replyOk)
}

// Angles queries the mount position. The reply is two hex digits of tilt,
// one ignored separator byte, then two hex digits of pan.
func (m *Mount) Angles() (Angles, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.prepare(); err != nil {
		return Angles{}, err
	}
	if err := m.write("angles", []byte{cmdAngles}); err != nil {
		return Angles{}, err
	}
	got, err := m.reply("angles", anglesReplyLen, "TT:PP")
	if err != nil {
		return Angles{}, err
	}
	tilt, errT := strconv.ParseUint(string(got[0:2]), 16, 8)
	pan, errP := strconv.ParseUint(string(got[3:5]), 16, 8)
	if errT != nil || errP != nil || tilt > maxAngle || pan > maxAngle {
		return Angles{}, &ProtocolError{Op: "angles", Want: "TT:PP", Got: got}
	}
	m.last = Angles{Pan: int(pan), Tilt: int(tilt)}
	return m.last, nil
}

// exchange writes cmd and expects want as the complete reply.
func (m *Mount) exchange(op string, cmd []byte, want string) error {
	if err := m.write(op, cmd); err != nil {
		return err
	}
	got, err := m.reply(op, len(want), want)
	if err != nil {
		return err
	}
	if string(got) != want {
		return &ProtocolError{Op: op, Want: want, Got: got}
	}
	return nil
}

func (m *Mount) write(op string, cmd []byte) error {
	debug.Wire("tx", cmd)
	if _, err := m.link.Write(cmd); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	return nil
}

// reply reads exactly n bytes. Silence is a transport timeout; a short reply
// is a protocol error.
func (m *Mount) reply(op string, n int, want string) ([]byte, error) {
	got, err := m.read(n)
	switch {
	case err == nil:
		return got, nil
	case errors.Is(err, ErrReadTimeout) && len(got) > 0:
		return nil, &ProtocolError{Op: op, Want: want, Got: got}
	default:
		return nil, &TransportError{Op: op, Err: err}
	}
}

// read collects up to n bytes, stopping early on timeout or error.
func (m *Mount) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		k, err := m.link.Read(buf[got:])
		got += k
		if err != nil {
			if err == io.EOF && got < n {
				err = io.ErrUnexpectedEOF
			}
			debug.Wire("rx", buf[:got])
			return buf[:got], err
		}
		if k == 0 {
			debug.Wire("rx", buf[:got])
			return buf[:got], ErrReadTimeout
		}
	}
	debug.Wire("rx", buf)
	return buf, nil
}

func rateCommand(pct int, suffix byte) []byte {
	if pct > MaxPct {
		pct = MaxPct
	} else if pct < -MaxPct {
		pct = -MaxPct
	}
	return append([]byte(strconv.Itoa(pct)), suffix)
}
