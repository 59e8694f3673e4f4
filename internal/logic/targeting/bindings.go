package targeting

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// Selector names a way of picking a target: one of the four manual buttons or
// one of the two automatic scoring directions.
type Selector int

const (
	SelectA Selector = iota
	SelectB
	SelectX
	SelectY
	SelectLeft
	SelectRight
)

// ManualSelectors lists the buttons in the order targets are bound to them.
var ManualSelectors = []Selector{SelectA, SelectB, SelectX, SelectY}

func (s Selector) String() string {
	switch s {
	case SelectA:
		return "A"
	case SelectB:
		return "B"
	case SelectX:
		return "X"
	case SelectY:
		return "Y"
	case SelectLeft:
		return "Left"
	case SelectRight:
		return "Right"
	default:
		return fmt.Sprintf("Selector(%d)", int(s))
	}
}

// Bindings maps selectors to target center points for one frame.
type Bindings struct {
	points map[Selector]r2.Point
}

// BindSelectionTriggers binds the first four targets, left to right, to the
// manual buttons. Targets past the fourth are not selectable. The automatic
// left and right choices bind to the pair closest to the frame center.
func BindSelectionTriggers(set Set) Bindings {
	b := Bindings{points: make(map[Selector]r2.Point, len(ManualSelectors)+2)}
	for i, t := range set {
		if i >= len(ManualSelectors) {
			break
		}
		b.points[ManualSelectors[i]] = t.Center()
	}
	if pair := ClosestPairToCenter(set); len(pair) == 2 {
		b.points[SelectLeft] = pair[0].Center()
		b.points[SelectRight] = pair[1].Center()
	}
	return b
}

// Lookup returns the point bound to s.
func (b Bindings) Lookup(s Selector) (r2.Point, bool) {
	p, ok := b.points[s]
	return p, ok
}

// Bound reports whether s currently selects a target.
func (b Bindings) Bound(s Selector) bool {
	_, ok := b.points[s]
	return ok
}

// Selectable returns the bound manual buttons in binding order.
func (b Bindings) Selectable() []string {
	out := make([]string, 0, len(ManualSelectors))
	for _, s := range ManualSelectors {
		if b.Bound(s) {
			out = append(out, s.String())
		}
	}
	return out
}
