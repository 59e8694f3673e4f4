package control

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/team997coders/hatchtracker/internal/debug"
	"github.com/team997coders/hatchtracker/internal/hw/mount"
	"github.com/team997coders/hatchtracker/internal/logic/motion"
	"github.com/team997coders/hatchtracker/internal/logic/targeting"
	"github.com/team997coders/hatchtracker/internal/telemetry"
)

// Defaults for Config.
const (
	DefaultRetryBudget   = 4
	DefaultLockThreshold = 0.05
)

// Mount is the mount as seen by the machine: rate commands plus the angle
// query.
type Mount interface {
	motion.Mover
	Angles() (mount.Angles, error)
}

// Config tunes the per-frame handlers.
type Config struct {
	// RetryBudget is the number of consecutive frames a tracked target may
	// go missing. The next miss is a transition.
	RetryBudget int
	// LockThreshold is the largest normalized offset on either axis that
	// counts as aligned.
	LockThreshold float64
	Gains         motion.Gains
	Signs         motion.Signs
}

// DefaultConfig returns the tuning used on the robot.
func DefaultConfig() Config {
	return Config{
		RetryBudget:   DefaultRetryBudget,
		LockThreshold: DefaultLockThreshold,
		Gains:         motion.DefaultGains,
		Signs:         motion.DefaultSigns,
	}
}

// Transition describes one state change.
type Transition struct {
	From  State
	To    State
	Event Event
}

// Machine runs the workflow. It is driven from a single goroutine: the frame
// loop calls Fire for input events and Update once per processed frame, and
// only those calls reach the mount.
type Machine struct {
	cfg    Config
	mount  Mount
	motion *motion.Controller
	pub    *telemetry.Publisher

	state    State
	bindings targeting.Bindings
	point    r2.Point
	misses   int
	jog      float64

	online   bool
	angles   mount.Angles
	selected telemetry.Selected
	active   bool

	observers []func(Transition)
}

// NewMachine returns a machine in Discovering. A nil m runs vision-only.
func NewMachine(m Mount, pub *telemetry.Publisher, cfg Config) *Machine {
	if cfg.RetryBudget < 0 {
		cfg.RetryBudget = DefaultRetryBudget
	}
	if cfg.LockThreshold <= 0 {
		cfg.LockThreshold = DefaultLockThreshold
	}
	mc := &Machine{
		cfg:    cfg,
		mount:  m,
		pub:    pub,
		state:  Discovering,
		online: m != nil,
		angles: mount.Centered,
	}
	if m != nil {
		mc.motion = motion.NewController(m, cfg.Gains, cfg.Signs)
	}
	return mc
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Bindings returns the selector bindings from the last Discovering frame.
func (m *Machine) Bindings() targeting.Bindings { return m.bindings }

// Selected returns the record of the tracked target, if one was found on
// the last frame.
func (m *Machine) Selected() (telemetry.Selected, bool) { return m.selected, m.active }

// MountOnline reports whether mount commands are still being issued.
func (m *Machine) MountOnline() bool { return m.online }

// Angles returns the last mount angles read.
func (m *Machine) Angles() mount.Angles { return m.angles }

// Observe registers fn to be called after every transition.
func (m *Machine) Observe(fn func(Transition)) {
	m.observers = append(m.observers, fn)
}

// Fire applies e. It returns false when e is not permitted in the current
// state, which is not an error.
func (m *Machine) Fire(e Event) bool {
	next, ok := Next(m.state, e, m.bindings.Bound)
	if !ok {
		debug.Verbose("ignored %s in %s", e, m.state)
		return false
	}
	if e.Trigger == PanAxis || e.Trigger == TiltAxis {
		m.jog = e.Value
	}
	if next == m.state && e.Trigger != Reset {
		return true
	}

	t := Transition{From: m.state, To: next, Event: e}
	m.state = next
	debug.Transition(t.From.String(), t.To.String(), e.String())
	m.enter(t)
	for _, fn := range m.observers {
		fn(t)
	}
	return true
}

// enter runs the entry action of t.To.
func (m *Machine) enter(t Transition) {
	switch t.To {
	case Discovering:
		m.misses = 0
		m.active = false
		m.selected = telemetry.Selected{}
		if m.online {
			m.result("stop", m.motion.Stop())
		}
	case Slewing, AutoLocked:
		sel, _ := t.Event.Trigger.Selector()
		m.point, _ = m.bindings.Lookup(sel)
		m.misses = 0
		if m.online {
			m.motion.Reset()
		}
	case Locked, Driving:
		m.misses = 0
	}
}

// Update runs the handler of the current state for one frame of targets.
func (m *Machine) Update(set targeting.Set) {
	m.readAngles()
	m.pub.WriteTargets(set)
	m.pub.WriteCamera(m.angles.Pan, m.angles.Tilt)

	switch m.state {
	case Discovering:
		m.bindings = targeting.BindSelectionTriggers(set)
		m.pub.ClearSelected()
		m.pub.WriteSelectable(m.bindings.Selectable())
	case Slewing, Locked, Driving, AutoLocked:
		m.track(set)
	case LockFailed, LockLost:
		m.Fire(Event{Trigger: FindTargets})
	case Panning:
		if m.online {
			m.result("pan", m.motion.JogPan(m.jog))
		}
	case Tilting:
		if m.online {
			m.result("tilt", m.motion.JogTilt(m.jog))
		}
	case Centering:
		if m.online {
			m.result("center", m.motion.Center())
		}
		m.Fire(Event{Trigger: CenterComplete})
	case Calibrating:
		// Exposure tuning happens off-robot; nothing is tracked meanwhile.
	}

	m.pub.WriteState(m.state.String())
}

// track re-acquires the selected target by its last known point and slews
// toward it. Misses beyond the retry budget become FailedToLock while slewing
// and LoseLock otherwise.
func (m *Machine) track(set targeting.Set) {
	target, ok := targeting.FindByPoint(set, m.point)
	if !ok {
		m.misses++
		m.active = false
		m.pub.ClearSelected()
		debug.Verbose("target not found at (%.0f, %.0f), miss %d of %d", m.point.X, m.point.Y, m.misses, m.cfg.RetryBudget)
		if m.misses <= m.cfg.RetryBudget {
			return
		}
		if m.state == Slewing {
			m.Fire(Event{Trigger: FailedToLock})
		} else {
			m.Fire(Event{Trigger: LoseLock})
		}
		return
	}

	m.misses = 0
	m.point = target.Center()
	m.selected = telemetry.SelectedFrom(target, m.angles.Pan, m.state == Driving)
	m.active = true
	m.pub.WriteSelected(m.selected)

	off := targeting.NormalizedOffset(target)
	slewed := true
	if m.online {
		_, _, err := m.motion.Track(off)
		slewed = m.result("slew", err)
	}

	aligned := math.Abs(off.X) <= m.cfg.LockThreshold && math.Abs(off.Y) <= m.cfg.LockThreshold
	if m.state == Slewing && aligned && slewed {
		m.Fire(Event{Trigger: LockOn})
	}
}

func (m *Machine) readAngles() {
	if !m.online {
		return
	}
	a, err := m.mount.Angles()
	if m.result("angles", err) {
		m.angles = a
	}
}

// result absorbs a mount error. A missing transport turns motion off for
// good; any other failure only aborts the command that produced it.
func (m *Machine) result(op string, err error) bool {
	if err == nil {
		return true
	}
	if mount.IsClosed(err) {
		debug.Warn("No pan/tilt mount attached, continuing vision-only")
		m.online = false
		return false
	}
	debug.Warn("mount %s failed: %v", op, err)
	return false
}
