// Package targeting turns the rectangles of one frame into an ordered set of
// targets and resolves selections against it.
package targeting

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/team997coders/hatchtracker/internal/debug"
	"github.com/team997coders/hatchtracker/internal/logic/geometry"
)

// boundsSlop is the total inflation applied to a target's bounds on each
// axis when re-acquiring it by point.
const boundsSlop = 0.30

// Set is the targets found in one frame, ordered left to right.
type Set []geometry.Target

// Pair sorts rects by center x and scans them left to right. When the current
// rectangle pairs with a later one both are consumed; when it does not, only
// the right-hand candidate advances so a lone stray rectangle does not
// swallow the next valid pair.
func Pair(rects []geometry.Rectangle, cal geometry.Calibration) Set {
	if len(rects) < 2 {
		return nil
	}
	sorted := make([]geometry.Rectangle, len(rects))
	copy(sorted, rects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Center.X < sorted[j].Center.X
	})

	var set Set
	for i := 0; i < len(sorted)-1; {
		paired := false
		for j := i + 1; j < len(sorted); j++ {
			target, reason := geometry.TryPair(sorted[i], sorted[j], cal)
			if reason != geometry.Accepted {
				debug.Trace("pair %d/%d rejected: %s", i, j, reason)
				continue
			}
			set = append(set, target)
			i = j + 1
			paired = true
			break
		}
		if !paired {
			i++
		}
	}
	return set
}

// FindByPoint returns the first target whose bounds, inflated by 30% on each
// axis, contain p.
func FindByPoint(set Set, p r2.Point) (geometry.Target, bool) {
	for _, t := range set {
		if inflated(t.Bounds()).ContainsPoint(p) {
			return t, true
		}
	}
	return geometry.Target{}, false
}

func inflated(b r2.Rect) r2.Rect {
	return b.Expanded(b.Size().Mul(boundsSlop / 2))
}

// NormalizedOffset returns the target center relative to the frame center as
// a fraction of the half frame. Positive x is right, positive y is down.
func NormalizedOffset(t geometry.Target) r2.Point {
	return t.Offset()
}

// ClosestPairToCenter returns the two adjacent targets that best straddle the
// horizontal center of the frame, in left to right order. A single target is
// returned twice and an empty set yields nil.
func ClosestPairToCenter(set Set) []geometry.Target {
	switch len(set) {
	case 0:
		return nil
	case 1:
		return []geometry.Target{set[0], set[0]}
	}

	mid := set[0].Calibration().FOVPixelWidth / 2
	best := 0
	bestDist := math.Inf(1)
	for i := 0; i < len(set)-1; i++ {
		d := math.Abs(set[i].Center().X-mid) + math.Abs(set[i+1].Center().X-mid)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return []geometry.Target{set[best], set[best+1]}
}
