package targeting

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/team997coders/hatchtracker/internal/logic/geometry"
)

func calibration(t *testing.T) geometry.Calibration {
	t.Helper()
	cal, err := geometry.CalibrationFor(geometry.LifecamHD5000)
	require.NoError(t, err)
	return cal
}

// strips returns the two rectangles of a 12in wide target centered at cx.
func strips(cal geometry.Calibration, cx float64) []geometry.Rectangle {
	s := cal.PixelsPerInchAtReference()
	return []geometry.Rectangle{
		geometry.NewRectangle(cx-6*s, 240, geometry.TapeLengthIn*s, geometry.TapeWidthIn*s, -75.5),
		geometry.NewRectangle(cx+6*s, 240, geometry.TapeWidthIn*s, geometry.TapeLengthIn*s, -14.5),
	}
}

func frame(cal geometry.Calibration, centers ...float64) []geometry.Rectangle {
	var rects []geometry.Rectangle
	for _, cx := range centers {
		rects = append(rects, strips(cal, cx)...)
	}
	return rects
}

func TestPair_OrdersTargetsLeftToRight(t *testing.T) {
	cal := calibration(t)
	rects := frame(cal, 500, 100, 300)
	// Shuffle the input so Pair has to sort.
	rects[0], rects[5] = rects[5], rects[0]

	set := Pair(rects, cal)
	require.Len(t, set, 3)
	assert.InDelta(t, 100, set[0].Center().X, 1e-6)
	assert.InDelta(t, 300, set[1].Center().X, 1e-6)
	assert.InDelta(t, 500, set[2].Center().X, 1e-6)
}

func TestPair_SkipsStrayRectangle(t *testing.T) {
	cal := calibration(t)
	rects := strips(cal, 320)
	stray := geometry.NewRectangle(320, 240, 10, 40, -40)
	rects = append(rects, stray)

	set := Pair(rects, cal)
	require.Len(t, set, 1)
	assert.InDelta(t, 320, set[0].Center().X, 1e-6)
}

func TestPair_FewerThanTwoRectangles(t *testing.T) {
	cal := calibration(t)
	assert.Empty(t, Pair(nil, cal))
	assert.Empty(t, Pair(strips(cal, 320)[:1], cal))
}

func TestPair_NeverExceedsHalf(t *testing.T) {
	cal := calibration(t)
	cases := map[string][]geometry.Rectangle{
		"odd_count":     append(frame(cal, 100, 400), geometry.NewRectangle(600, 240, 10, 40, -14.5)),
		"all_rejecting": {
			geometry.NewRectangle(100, 240, 10, 40, -40),
			geometry.NewRectangle(200, 240, 10, 40, -40),
			geometry.NewRectangle(300, 240, 10, 40, -40),
			geometry.NewRectangle(400, 240, 10, 40, -40),
			geometry.NewRectangle(500, 240, 10, 40, -40),
		},
		"degenerate": {
			geometry.NewRectangle(100, 240, 0, 0, 0),
			geometry.NewRectangle(100, 240, 0, 0, 0),
			geometry.NewRectangle(100, 240, 0, 0, -90),
		},
	}
	for name, rects := range cases {
		t.Run(name, func(t *testing.T) {
			var set Set
			assert.NotPanics(t, func() { set = Pair(rects, cal) })
			assert.LessOrEqual(t, len(set), len(rects)/2)
		})
	}
}

func TestFindByPoint_InsideBounds(t *testing.T) {
	cal := calibration(t)
	set := Pair(frame(cal, 100, 320, 540), cal)
	require.Len(t, set, 3)

	for i, target := range set {
		b := target.Bounds()
		for _, p := range []r2.Point{
			b.Center(),
			{X: b.X.Lo + 1, Y: b.Y.Lo + 1},
			{X: b.X.Hi - 1, Y: b.Y.Hi - 1},
		} {
			found, ok := FindByPoint(set, p)
			require.True(t, ok, "target %d point %v", i, p)
			assert.Equal(t, target.Center(), found.Center())
		}
	}
}

func TestFindByPoint_Slop(t *testing.T) {
	cal := calibration(t)
	set := Pair(frame(cal, 320), cal)
	require.Len(t, set, 1)
	b := set[0].Bounds()

	justOutside := r2.Point{X: b.X.Hi + 0.10*b.X.Length(), Y: b.Center().Y}
	_, ok := FindByPoint(set, justOutside)
	assert.True(t, ok, "point inside the 15 percent margin should match")

	farOutside := r2.Point{X: b.X.Hi + 0.20*b.X.Length(), Y: b.Center().Y}
	_, ok = FindByPoint(set, farOutside)
	assert.False(t, ok, "point past the margin should not match")
}

func TestFindByPoint_EmptySet(t *testing.T) {
	_, ok := FindByPoint(nil, r2.Point{X: 320, Y: 240})
	assert.False(t, ok)
}

func TestNormalizedOffset(t *testing.T) {
	cal := calibration(t)
	set := Pair(frame(cal, 480), cal)
	require.Len(t, set, 1)
	off := NormalizedOffset(set[0])
	assert.InDelta(t, 0.5, off.X, 1e-6)
	assert.InDelta(t, 0, off.Y, 1e-6)
}

func TestClosestPairToCenter(t *testing.T) {
	cal := calibration(t)

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, ClosestPairToCenter(nil))
	})

	t.Run("single_duplicated", func(t *testing.T) {
		set := Pair(frame(cal, 200), cal)
		pair := ClosestPairToCenter(set)
		require.Len(t, pair, 2)
		assert.Equal(t, pair[0].Center(), pair[1].Center())
	})

	t.Run("two_in_order", func(t *testing.T) {
		set := Pair(frame(cal, 150, 450), cal)
		pair := ClosestPairToCenter(set)
		require.Len(t, pair, 2)
		assert.Less(t, pair[0].Center().X, pair[1].Center().X)
	})

	t.Run("best_straddling_window", func(t *testing.T) {
		set := Pair(frame(cal, 100, 300, 500), cal)
		require.Len(t, set, 3)
		pair := ClosestPairToCenter(set)
		require.Len(t, pair, 2)
		assert.InDelta(t, 300, pair[0].Center().X, 1e-6)
		assert.InDelta(t, 500, pair[1].Center().X, 1e-6)
	})
}
