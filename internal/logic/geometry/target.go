package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Physical dimensions of one strip of targeting tape.
const (
	TapeWidthIn  = 2.0
	TapeLengthIn = 5.5

	// tapePerimeterIn is the combined perimeter of both strips of a target.
	tapePerimeterIn = 2 * 2 * (TapeWidthIn + TapeLengthIn)
)

// Pairing limits.
const (
	TiltSlackIn      = 2.0  // max vertical offset between strip centers
	MaxSeparationIn  = 15.0 // max center-to-center distance
	InwardTiltMargin = 30.0 // degrees left must be more rotated than right

	leftAngleMin  = -90.0 // exclusive
	leftAngleMax  = -55.0 // inclusive
	rightAngleMin = -25.0 // inclusive
	rightAngleMax = 0.0   // exclusive

	// maxAspectCorrection caps the obliquity fed into the range correction.
	maxAspectCorrection = math.Pi / 3
)

// RejectReason tells why two rectangles do not form a target.
type RejectReason int

const (
	Accepted RejectReason = iota
	RejectTilt
	RejectOrientation
	RejectAspect
	RejectInwardTilt
	RejectSeparation
)

func (r RejectReason) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectTilt:
		return "tilted too much"
	case RejectOrientation:
		return "rectangles not tilted inward"
	case RejectAspect:
		return "rectangle lying flat"
	case RejectInwardTilt:
		return "inward tilt margin not met"
	case RejectSeparation:
		return "rectangles too far apart"
	default:
		return fmt.Sprintf("RejectReason(%d)", int(r))
	}
}

// Target is a validated pair of tape strips. Build one with TryPair.
type Target struct {
	left  Rectangle
	right Rectangle
	cal   Calibration
}

// TryPair validates left and right as the two strips of one target.
// Checks run in a fixed order and the first failing check is reported.
func TryPair(left, right Rectangle, cal Calibration) (Target, RejectReason) {
	if left.Center.X > right.Center.X {
		left, right = right, left
	}
	if !hasArea(left) || !hasArea(right) {
		return Target{}, RejectAspect
	}
	t := Target{left: left, right: right, cal: cal}

	scale := t.PxToInches(t.Center().X)

	if math.Abs(left.Center.Y-right.Center.Y)*scale > TiltSlackIn {
		return Target{}, RejectTilt
	}
	if !orientedInward(left, right) {
		return Target{}, RejectOrientation
	}
	if !standsUpright(left) || !standsUpright(right) {
		return Target{}, RejectAspect
	}
	if !tiltedInward(left, right) {
		return Target{}, RejectInwardTilt
	}
	if left.Center.Sub(right.Center).Norm()*scale > MaxSeparationIn {
		return Target{}, RejectSeparation
	}
	return t, Accepted
}

// orientedInward checks left in (-90,-55] and right in [-25,0).
func orientedInward(left, right Rectangle) bool {
	if left.axisAligned() || right.axisAligned() {
		return false
	}
	if left.Angle <= leftAngleMin || left.Angle > leftAngleMax {
		return false
	}
	if right.Angle < rightAngleMin || right.Angle >= rightAngleMax {
		return false
	}
	return true
}

func hasArea(r Rectangle) bool {
	return r.Width > 0 && r.Height > 0
}

func standsUpright(r Rectangle) bool {
	w, h := r.Normalized()
	return w <= h
}

// tiltedInward guards against two left-style strips.
func tiltedInward(left, right Rectangle) bool {
	return left.Angle+InwardTiltMargin <= right.Angle
}

// Left returns the left strip.
func (t Target) Left() Rectangle { return t.left }

// Right returns the right strip.
func (t Target) Right() Rectangle { return t.right }

// Calibration returns the camera constants the target was measured with.
func (t Target) Calibration() Calibration { return t.cal }

// Center returns the midpoint between the two strip centers.
func (t Target) Center() r2.Point {
	return t.left.Center.Add(t.right.Center).Mul(0.5)
}

// Bounds returns the axis-aligned box around all eight strip corners.
func (t Target) Bounds() r2.Rect {
	return t.left.Bounds().Union(t.right.Bounds())
}

// PxToInches returns the inches-per-pixel scale at horizontal position x.
// The apparent tape width is interpolated linearly between the two strips
// to follow perspective foreshortening across the target.
func (t Target) PxToInches(x float64) float64 {
	wl, _ := t.left.Normalized()
	wr, _ := t.right.Normalized()
	dx := t.right.Center.X - t.left.Center.X
	if wl == wr || dx == 0 {
		return TapeWidthIn / math.Max(wl, wr)
	}
	w := wl + (wr-wl)*(x-t.left.Center.X)/dx
	if w <= 0 {
		w = math.Min(wl, wr)
	}
	return TapeWidthIn / w
}

// WidthIn returns the center-to-center distance in inches.
func (t Target) WidthIn() float64 {
	return t.left.Center.Sub(t.right.Center).Norm() * t.PxToInches(t.Center().X)
}

// Offset returns the center position as a fraction of the half frame on
// each axis, clamped to [-1,1]. Positive x is right of center, positive y
// is below center.
func (t Target) Offset() r2.Point {
	return NormalizedPoint(t.Center(), t.cal)
}

// NormalizedPoint maps a pixel position to [-1,1] on both axes.
func NormalizedPoint(p r2.Point, cal Calibration) r2.Point {
	halfW := cal.FOVPixelWidth / 2
	halfH := cal.FOVPixelHeight / 2
	return r2.Point{
		X: clampUnit((p.X - halfW) / halfW),
		Y: clampUnit((p.Y - halfH) / halfH),
	}
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// AspectAngle approximates the viewing obliquity in radians from the area
// difference between the two strips.
func (t Target) AspectAngle() float64 {
	diff := math.Abs(t.left.Area() - t.right.Area())
	return diff * t.cal.TanHalfDiagonal() / t.cal.PixelDiagonal()
}

// AreaRatio returns left area over right area.
func (t Target) AreaRatio() float64 {
	if t.right.Area() == 0 {
		return 0
	}
	return t.left.Area() / t.right.Area()
}

// Range estimates the distance to the target in inches.
//
// The apparent size is the combined perimeter of both strips, corrected for
// horizontal and vertical off-axis position and for obliquity, then fed to
// the pinhole relation
//
//	range = physical * fovPixelWidth / (2 * size * tan(hfov/2))
func (t Target) Range() float64 {
	size := t.left.Perimeter() + t.right.Perimeter()
	off := t.Offset()

	phiX := math.Atan(math.Abs(off.X) * t.cal.TanHalfHorizontal())
	phiY := math.Atan(math.Abs(off.Y) * t.cal.TanHalfVertical())
	dH := size * (math.Cos(phiX) - 1)
	dV := size * (math.Cos(phiY) - 1)

	alpha := math.Min(t.AspectAngle(), maxAspectCorrection)
	wl, _ := t.left.Normalized()
	wr, _ := t.right.Normalized()
	dA := 2 * (wl + wr) * (1/math.Cos(alpha) - 1)

	corrected := size + dH + dV + dA
	if corrected <= 0 {
		return 0
	}
	return tapePerimeterIn * t.cal.FOVPixelWidth / (2 * corrected * t.cal.TanHalfHorizontal())
}

// Summary is the JSON-friendly view used by telemetry and snapshots.
type Summary struct {
	CenterX     float64 `json:"center_x"`
	CenterY     float64 `json:"center_y"`
	RangeIn     float64 `json:"range_in"`
	AspectAngle float64 `json:"aspect_angle_rad"`
	AreaRatio   float64 `json:"area_ratio"`
}

// Summarize returns the target's derived values.
func (t Target) Summarize() Summary {
	c := t.Center()
	return Summary{
		CenterX:     c.X,
		CenterY:     c.Y,
		RangeIn:     t.Range(),
		AspectAngle: t.AspectAngle(),
		AreaRatio:   t.AreaRatio(),
	}
}
