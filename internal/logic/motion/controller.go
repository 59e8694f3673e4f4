package motion

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/team997coders/hatchtracker/internal/debug"
)

// Mover is the set of mount commands the motion layer issues.
type Mover interface {
	Pan(pct int) error
	Tilt(pct int) error
	Slew(panPct, tiltPct int) error
	Center() error
}

// Gains are the PID gains shared by both axes.
type Gains struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// DefaultGains is proportional only, which tracks well on the mini mount.
var DefaultGains = Gains{Kp: 0.32}

// Signs maps a positive normalized offset to a mount rate direction on each
// axis. Each value is +1 or -1.
type Signs struct {
	Pan  int `yaml:"pan"`
	Tilt int `yaml:"tilt"`
}

// DefaultSigns pans right toward targets right of center and tilts down
// toward targets below center on a mount whose positive tilt rate is up.
var DefaultSigns = Signs{Pan: 1, Tilt: -1}

// Validate rejects signs other than +1 and -1.
func (s Signs) Validate() error {
	if (s.Pan != 1 && s.Pan != -1) || (s.Tilt != 1 && s.Tilt != -1) {
		return fmt.Errorf("motion signs must be +1 or -1, got pan=%d tilt=%d", s.Pan, s.Tilt)
	}
	return nil
}

// Controller drives the mount toward a target from its normalized offset,
// one PID per axis, and forwards manual jog commands.
type Controller struct {
	mover Mover
	pan   *PID
	tilt  *PID
	signs Signs
}

// NewController returns a controller issuing commands to m.
func NewController(m Mover, gains Gains, signs Signs) *Controller {
	return &Controller{
		mover: m,
		pan:   NewPID(gains.Kp, gains.Ki, gains.Kd),
		tilt:  NewPID(gains.Kp, gains.Ki, gains.Kd),
		signs: signs,
	}
}

// Correction returns the pan and tilt rates for an offset without sending
// them.
func (c *Controller) Correction(offset r2.Point) (panPct, tiltPct int) {
	panPct = c.signs.Pan * toPct(c.pan.Update(offset.X))
	tiltPct = c.signs.Tilt * toPct(c.tilt.Update(offset.Y))
	return panPct, tiltPct
}

// Track slews toward the target at offset and returns the rates sent.
func (c *Controller) Track(offset r2.Point) (panPct, tiltPct int, err error) {
	panPct, tiltPct = c.Correction(offset)
	debug.Live("slew pan=%d tilt=%d offset=(%.3f, %.3f)", panPct, tiltPct, offset.X, offset.Y)
	return panPct, tiltPct, c.mover.Slew(panPct, tiltPct)
}

// Stop halts both axes and clears the loops.
func (c *Controller) Stop() error {
	c.Reset()
	return c.mover.Slew(0, 0)
}

// Reset clears the PID state without moving the mount.
func (c *Controller) Reset() {
	c.pan.Reset()
	c.tilt.Reset()
}

// JogPan sets the pan rate from a joystick value in [-1, 1].
func (c *Controller) JogPan(value float64) error {
	return c.mover.Pan(toPct(value))
}

// JogTilt sets the tilt rate from a joystick value in [-1, 1].
func (c *Controller) JogTilt(value float64) error {
	return c.mover.Tilt(toPct(value))
}

// Center returns the mount to rest.
func (c *Controller) Center() error {
	c.Reset()
	return c.mover.Center()
}

func toPct(v float64) int {
	return int(math.Round(math.Max(-1, math.Min(1, v)) * 100))
}
