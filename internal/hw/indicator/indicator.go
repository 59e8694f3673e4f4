// Package indicator drives the ring light around the camera lens and the
// lock LED the drivers watch from the field.
package indicator

import (
	"fmt"
	"sync"

	"github.com/team997coders/hatchtracker/internal/debug"
	"github.com/team997coders/hatchtracker/internal/hw/gpio"
	"github.com/team997coders/hatchtracker/internal/logic/control"
)

// Pins holds the BCM pin numbers. 0 leaves a light unwired.
type Pins struct {
	RingLight int
	LockLED   int
}

// Indicator turns control state into light.
type Indicator struct {
	drv  gpio.Driver
	pins Pins

	mu     sync.Mutex
	ring   bool
	locked bool
}

// New sets the wired pins up as outputs, both lights off.
func New(drv gpio.Driver, pins Pins) (*Indicator, error) {
	for _, pin := range []int{pins.RingLight, pins.LockLED} {
		if pin == 0 {
			continue
		}
		if err := drv.SetupPin(pin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup indicator pin %d: %w", pin, err)
		}
		if err := drv.WritePin(pin, gpio.Low); err != nil {
			return nil, fmt.Errorf("reset indicator pin %d: %w", pin, err)
		}
	}
	debug.Verbose("Indicator: ring light pin %d, lock LED pin %d", pins.RingLight, pins.LockLED)
	return &Indicator{drv: drv, pins: pins}, nil
}

// Start lights the ring. The retroreflective tape is only visible to the
// camera while it is on.
func (i *Indicator) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.set(i.pins.RingLight, &i.ring, true)
}

// Stop turns both lights off.
func (i *Indicator) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	errRing := i.set(i.pins.RingLight, &i.ring, false)
	errLock := i.set(i.pins.LockLED, &i.locked, false)
	if errRing != nil {
		return errRing
	}
	return errLock
}

// OnTransition follows the machine: the lock LED is on while a lock is held.
// Register it with Machine.Observe.
func (i *Indicator) OnTransition(t control.Transition) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.set(i.pins.LockLED, &i.locked, t.To.HasLock()); err != nil {
		debug.Warn("lock LED: %v", err)
	}
}

// Locked reports whether the lock LED is lit.
func (i *Indicator) Locked() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.locked
}

// set writes pin only when the light changes.
func (i *Indicator) set(pin int, state *bool, on bool) error {
	if pin == 0 || *state == on {
		return nil
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := i.drv.WritePin(pin, level); err != nil {
		return err
	}
	*state = on
	return nil
}
