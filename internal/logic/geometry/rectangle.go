package geometry

import (
	"math"

	"github.com/golang/geo/r2"
)

// Rectangle is a rotated rectangle as reported by the contour filter.
//
// Angle follows the minimum-area-rectangle convention: it is measured in
// degrees between the horizontal axis and the Width edge and decreases from
// 0 toward -90 as the rectangle rotates counter-clockwise. 0 and -90 are the
// axis-aligned cases.
type Rectangle struct {
	Center r2.Point `json:"center"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
	Angle  float64  `json:"angle"`
}

// NewRectangle builds a rectangle from center coordinates, size and angle.
func NewRectangle(cx, cy, width, height, angle float64) Rectangle {
	return Rectangle{
		Center: r2.Point{X: cx, Y: cy},
		Width:  width,
		Height: height,
		Angle:  angle,
	}
}

// Normalized returns the short side and the long side of the rectangle as seen
// on the tape: when the Width edge is the more vertical one (angle below -45)
// the reported width and height swap roles.
func (r Rectangle) Normalized() (width, height float64) {
	if r.Angle < -45 {
		return r.Height, r.Width
	}
	return r.Width, r.Height
}

// Perimeter returns the sum of the four side lengths in pixels.
func (r Rectangle) Perimeter() float64 {
	return 2 * (r.Width + r.Height)
}

// Area returns the pixel area.
func (r Rectangle) Area() float64 {
	return r.Width * r.Height
}

// Vertices returns the four corners. Vertex 0 is the lowest corner
// (greatest y) and the rest follow clockwise.
func (r Rectangle) Vertices() [4]r2.Point {
	rad := r.Angle * math.Pi / 180
	b := math.Cos(rad) * 0.5
	a := math.Sin(rad) * 0.5

	p0 := r2.Point{
		X: r.Center.X - a*r.Height - b*r.Width,
		Y: r.Center.Y + b*r.Height - a*r.Width,
	}
	p1 := r2.Point{
		X: r.Center.X + a*r.Height - b*r.Width,
		Y: r.Center.Y - b*r.Height - a*r.Width,
	}
	twice := r.Center.Mul(2)
	return [4]r2.Point{p0, p1, twice.Sub(p0), twice.Sub(p1)}
}

// Bounds returns the axis-aligned box containing all four corners.
func (r Rectangle) Bounds() r2.Rect {
	v := r.Vertices()
	return r2.RectFromPoints(v[:]...)
}

// axisAligned reports the singular -0/-90 cases.
func (r Rectangle) axisAligned() bool {
	return r.Angle == 0 || r.Angle == -90
}
