package mount

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/team997coders/hatchtracker/internal/debug"
	"go.bug.st/serial"
)

// DefaultBaud is the rate the mount firmware listens at.
const DefaultBaud = 57600

// ErrNotFound is returned when no serial port answers the handshake.
var ErrNotFound = errors.New("no pan/tilt mount found on any serial port")

// SerialLink is a Transport over a USB serial port, opened 8N1 with DTR set.
type SerialLink struct {
	name string
	port serial.Port
}

// OpenSerial opens name at baud (DefaultBaud when 0) and discards anything
// the device sent before we were listening.
func OpenSerial(name string, baud int) (*SerialLink, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err := port.SetDTR(true); err != nil {
		port.Close()
		return nil, fmt.Errorf("set DTR on %s: %w", name, err)
	}
	if err := port.SetReadTimeout(DefaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}

	link := &SerialLink{name: name, port: port}
	if err := link.drain(); err != nil {
		link.Close()
		return nil, err
	}
	return link, nil
}

// Name returns the port name, e.g. /dev/ttyACM0.
func (l *SerialLink) Name() string { return l.name }

// Read returns ErrReadTimeout when the port timed out with nothing read.
func (l *SerialLink) Read(p []byte) (int, error) {
	n, err := l.port.Read(p)
	if err == nil && n == 0 {
		return 0, ErrReadTimeout
	}
	return n, err
}

func (l *SerialLink) Write(p []byte) (int, error) {
	return l.port.Write(p)
}

func (l *SerialLink) SetReadTimeout(d time.Duration) error {
	return l.port.SetReadTimeout(d)
}

// Close drops DTR and closes the port.
func (l *SerialLink) Close() error {
	if err := l.port.SetDTR(false); err != nil {
		debug.Verbose("clear DTR on %s: %v", l.name, err)
	}
	return l.port.Close()
}

func (l *SerialLink) drain() error {
	time.Sleep(10 * time.Millisecond)
	if err := l.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("drain %s: %w", l.name, err)
	}
	return nil
}

// Finder scans serial ports for the mount. List and Open default to the
// system ports and OpenSerial; tests replace them.
type Finder struct {
	List func() ([]string, error)
	Open func(name string) (Transport, error)
}

// NewFinder returns a Finder over the system serial ports at baud.
func NewFinder(baud int) *Finder {
	return &Finder{
		List: serial.GetPortsList,
		Open: func(name string) (Transport, error) {
			return OpenSerial(name, baud)
		},
	}
}

// Find opens each port in turn and keeps the first one that completes the
// handshake. The returned mount is ready for commands.
func (f *Finder) Find() (*Mount, string, error) {
	names, err := f.List()
	if err != nil {
		return nil, "", fmt.Errorf("list serial ports: %w", err)
	}
	for _, name := range names {
		debug.Verbose("Scanning port: %s", name)
		link, err := f.Open(name)
		if err != nil {
			debug.Verbose("Error scanning port %s: %v", name, err)
			continue
		}
		m := New(link)
		if err := m.Handshake(); err != nil {
			debug.Verbose("No mount on %s: %v", name, err)
			if c, ok := link.(io.Closer); ok {
				c.Close()
			}
			continue
		}
		debug.Info("Pan/tilt mount found on %s", name)
		return m, name, nil
	}
	return nil, "", ErrNotFound
}
