// Package command reads driver station input from the command socket.
//
// The stream is plain bytes. Digits build a percentage and '-' negates it;
// 'p' and 't' end a joystick value for the pan and tilt axes. Button letters
// end a command on their own.
package command

import (
	"fmt"
	"sync"
)

// Codes sent by the driver station.
const (
	ButtonA       byte = 'A'
	ButtonB       byte = 'B'
	ButtonX       byte = 'X'
	ButtonY       byte = 'Y'
	LeftThumb     byte = 'c'
	RightThumb    byte = 'd'
	LeftShoulder  byte = 'e'
	RightShoulder byte = 'f'
	LeftTrigger   byte = 'g'
	RightTrigger  byte = 'h'
	PanAxis       byte = 'p'
	TiltAxis      byte = 't'
)

// Command is one completed input. Value is the joystick position in [-1, 1]
// for axis codes and zero for buttons.
type Command struct {
	Code  byte
	Value float64
}

func (c Command) String() string {
	if c.Code == PanAxis || c.Code == TiltAxis {
		return fmt.Sprintf("%c(%.2f)", c.Code, c.Value)
	}
	return string(c.Code)
}

// maxPct is the largest axis value, full rate.
const maxPct = 100

// ValueBuilder accumulates an axis value one character at a time.
type ValueBuilder struct {
	pct      int
	negative bool
}

// AddNumeral appends a decimal digit. The percentage saturates at 100.
func (b *ValueBuilder) AddNumeral(c byte) {
	b.pct = min(b.pct*10+int(c-'0'), maxPct)
}

// SetNegative marks the value negative.
func (b *ValueBuilder) SetNegative() { b.negative = true }

// SetPositive clears the negative mark.
func (b *ValueBuilder) SetPositive() { b.negative = false }

// Value returns the accumulated percentage as a fraction.
func (b *ValueBuilder) Value() float64 {
	v := float64(b.pct) / 100
	if b.negative {
		return -v
	}
	return v
}

// Reset clears the builder for the next value.
func (b *ValueBuilder) Reset() {
	b.pct = 0
	b.negative = false
}

// Decoder turns the byte stream into commands.
type Decoder struct {
	value ValueBuilder
}

// Feed consumes one byte and returns a command when it completed one.
// Unknown bytes are skipped.
func (d *Decoder) Feed(c byte) (Command, bool) {
	switch {
	case c >= '0' && c <= '9':
		d.value.AddNumeral(c)
	case c == '-':
		d.value.SetNegative()
	case c == PanAxis || c == TiltAxis:
		cmd := Command{Code: c, Value: d.value.Value()}
		d.value.Reset()
		return cmd, true
	case isButton(c):
		d.value.Reset()
		return Command{Code: c}, true
	}
	return Command{}, false
}

func isButton(c byte) bool {
	switch c {
	case ButtonA, ButtonB, ButtonX, ButtonY,
		LeftThumb, RightThumb, LeftShoulder, RightShoulder, LeftTrigger, RightTrigger:
		return true
	}
	return false
}

// Mailbox holds at most one pending command. A new command replaces one not
// yet taken.
type Mailbox struct {
	mu    sync.Mutex
	cmd   Command
	ready bool
}

// Put stores c, replacing any pending command.
func (m *Mailbox) Put(c Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cmd = c
	m.ready = true
}

// Take returns the pending command and empties the slot.
func (m *Mailbox) Take() (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return Command{}, false
	}
	m.ready = false
	return m.cmd, true
}

// Available reports whether a command is waiting.
func (m *Mailbox) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}
