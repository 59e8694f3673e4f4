// Package control owns the targeting workflow: which state the camera is in,
// which events move it between states, and what each state does per frame.
package control

import (
	"fmt"
	"strings"

	"github.com/team997coders/hatchtracker/internal/logic/targeting"
)

// State is a step of the targeting workflow.
type State int

const (
	Discovering State = iota
	Slewing
	Locked
	LockFailed
	LockLost
	Driving
	AutoLocked
	Calibrating
	Panning
	Tilting
	Centering
)

var stateNames = [...]string{
	Discovering: "Discovering",
	Slewing:     "Slewing",
	Locked:      "Locked",
	LockFailed:  "LockFailed",
	LockLost:    "LockLost",
	Driving:     "Driving",
	AutoLocked:  "AutoLocked",
	Calibrating: "Calibrating",
	Panning:     "Panning",
	Tilting:     "Tilting",
	Centering:   "Centering",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState matches a state name, ignoring case.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown camera state: %q", name)
}

// Tracking reports whether the state follows a selected target each frame.
func (s State) Tracking() bool {
	switch s {
	case Slewing, Locked, Driving, AutoLocked:
		return true
	}
	return false
}

// HasLock reports whether the state holds a confirmed lock.
func (s State) HasLock() bool {
	switch s {
	case Locked, Driving, AutoLocked:
		return true
	}
	return false
}

// Trigger is something that can happen to the workflow: a button, a joystick
// axis, or an outcome of the per-frame handler.
type Trigger int

const (
	ButtonA Trigger = iota
	ButtonB
	ButtonX
	ButtonY
	AutoLeft
	AutoRight
	LockOn
	FailedToLock
	LoseLock
	FindTargets
	PanAxis
	TiltAxis
	CenterMount
	CenterComplete
	Calibrate
	Reset
)

// Confirm and Cancel are the buttons that advance and abandon a lock.
const (
	Confirm = ButtonA
	Cancel  = ButtonB
)

var triggerNames = [...]string{
	ButtonA:        "A",
	ButtonB:        "B",
	ButtonX:        "X",
	ButtonY:        "Y",
	AutoLeft:       "AutoLeft",
	AutoRight:      "AutoRight",
	LockOn:         "LockOn",
	FailedToLock:   "FailedToLock",
	LoseLock:       "LoseLock",
	FindTargets:    "FindTargets",
	PanAxis:        "Pan",
	TiltAxis:       "Tilt",
	CenterMount:    "Center",
	CenterComplete: "CenterComplete",
	Calibrate:      "Calibrate",
	Reset:          "Reset",
}

func (t Trigger) String() string {
	if t >= 0 && int(t) < len(triggerNames) {
		return triggerNames[t]
	}
	return fmt.Sprintf("Trigger(%d)", int(t))
}

// Selector returns the targeting selector a trigger picks a target with.
func (t Trigger) Selector() (targeting.Selector, bool) {
	switch t {
	case ButtonA:
		return targeting.SelectA, true
	case ButtonB:
		return targeting.SelectB, true
	case ButtonX:
		return targeting.SelectX, true
	case ButtonY:
		return targeting.SelectY, true
	case AutoLeft:
		return targeting.SelectLeft, true
	case AutoRight:
		return targeting.SelectRight, true
	}
	return 0, false
}

// Event is a trigger with its value. Value carries the joystick position in
// [-1, 1] for PanAxis and TiltAxis and is zero otherwise.
type Event struct {
	Trigger Trigger
	Value   float64
}

func (e Event) String() string {
	if e.Trigger == PanAxis || e.Trigger == TiltAxis {
		return fmt.Sprintf("%s(%.2f)", e.Trigger, e.Value)
	}
	return e.Trigger.String()
}

// Guard reports whether a selector currently has a bound target.
type Guard func(targeting.Selector) bool

// Next is the transition table. It returns the state after e and whether e
// is permitted in s. Unpermitted events are ignored by the caller.
func Next(s State, e Event, bound Guard) (State, bool) {
	if e.Trigger == Reset {
		return Discovering, true
	}

	switch s {
	case Discovering:
		switch e.Trigger {
		case ButtonA, ButtonB, ButtonX, ButtonY:
			if sel, _ := e.Trigger.Selector(); bound != nil && bound(sel) {
				return Slewing, true
			}
		case AutoLeft, AutoRight:
			if sel, _ := e.Trigger.Selector(); bound != nil && bound(sel) {
				return AutoLocked, true
			}
		case PanAxis:
			if e.Value != 0 {
				return Panning, true
			}
		case TiltAxis:
			if e.Value != 0 {
				return Tilting, true
			}
		case CenterMount:
			return Centering, true
		case Calibrate:
			return Calibrating, true
		}

	case Slewing:
		switch e.Trigger {
		case LockOn:
			return Locked, true
		case FailedToLock:
			return LockFailed, true
		case Cancel:
			return Discovering, true
		}

	case Locked:
		switch e.Trigger {
		case Confirm:
			return Driving, true
		case Cancel:
			return Discovering, true
		case LoseLock:
			return LockLost, true
		}

	case Driving:
		switch e.Trigger {
		case Confirm:
			return Locked, true
		case Cancel:
			return Discovering, true
		case LoseLock:
			return LockLost, true
		}

	case AutoLocked:
		switch e.Trigger {
		case Cancel:
			return Discovering, true
		case LoseLock:
			return LockLost, true
		}

	case LockFailed, LockLost:
		if e.Trigger == FindTargets {
			return Discovering, true
		}

	case Panning:
		if e.Trigger == PanAxis {
			if e.Value == 0 {
				return Discovering, true
			}
			return Panning, true
		}

	case Tilting:
		if e.Trigger == TiltAxis {
			if e.Value == 0 {
				return Discovering, true
			}
			return Tilting, true
		}

	case Centering:
		if e.Trigger == CenterComplete {
			return Discovering, true
		}

	case Calibrating:
		switch e.Trigger {
		case Calibrate, Cancel:
			return Discovering, true
		}
	}
	return s, false
}
