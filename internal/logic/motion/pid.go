package motion

import "math"

// PID is a discrete PID loop stepped once per frame. The output is clamped to
// its limits, [-1, 1] unless changed.
type PID struct {
	kp, ki, kd float64
	min, max   float64

	integral float64
	prev     float64
	primed   bool
}

// NewPID returns a loop with the given gains.
func NewPID(kp, ki, kd float64) *PID {
	return &PID{kp: kp, ki: ki, kd: kd, min: -1, max: 1}
}

// SetOutputLimits changes the output clamp. Limits are swapped if reversed.
func (p *PID) SetOutputLimits(min, max float64) {
	if min > max {
		min, max = max, min
	}
	p.min, p.max = min, max
}

// Update feeds one error sample and returns the correction.
func (p *PID) Update(err float64) float64 {
	p.integral += err
	if p.ki != 0 {
		// Keep the integral term alone inside the output range.
		lo, hi := p.min/p.ki, p.max/p.ki
		if lo > hi {
			lo, hi = hi, lo
		}
		p.integral = math.Max(lo, math.Min(hi, p.integral))
	}

	var deriv float64
	if p.primed {
		deriv = err - p.prev
	}
	p.prev = err
	p.primed = true

	out := p.kp*err + p.ki*p.integral + p.kd*deriv
	return math.Max(p.min, math.Min(p.max, out))
}

// Reset clears accumulated state.
func (p *PID) Reset() {
	p.integral = 0
	p.prev = 0
	p.primed = false
}
