package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/team997coders/hatchtracker/internal/command"
	"github.com/team997coders/hatchtracker/internal/logic/control"
	"github.com/team997coders/hatchtracker/internal/logic/geometry"
	"github.com/team997coders/hatchtracker/internal/snapshot"
	"github.com/team997coders/hatchtracker/internal/telemetry"
	"github.com/team997coders/hatchtracker/internal/vision"
)

// sliceSource replays frames, then returns err (io.EOF when nil).
type sliceSource struct {
	mu     sync.Mutex
	frames []vision.Frame
	err    error
	calls  int
	onNext func(call int)
}

func (s *sliceSource) Next() (vision.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.onNext != nil {
		s.onNext(s.calls)
	}
	if len(s.frames) == 0 {
		if s.err != nil {
			return vision.Frame{}, s.err
		}
		return vision.Frame{}, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

type recordingRecorder struct {
	frames []snapshot.Frame
	err    error
}

func (r *recordingRecorder) Record(_ context.Context, f snapshot.Frame) error {
	r.frames = append(r.frames, f)
	return r.err
}

type harness struct {
	cal     geometry.Calibration
	table   *telemetry.MemoryTable
	machine *control.Machine
	box     *command.Mailbox
	runner  *Runner
}

// newHarness runs vision-only: the machine has no mount.
func newHarness(t *testing.T, src FrameSource) *harness {
	t.Helper()
	cal := calibration(t)
	table := telemetry.NewMemoryTable()
	pub := telemetry.NewPublisher(table)
	m := control.NewMachine(nil, pub, control.DefaultConfig())
	box := &command.Mailbox{}
	return &harness{
		cal:     cal,
		table:   table,
		machine: m,
		box:     box,
		runner:  NewRunner(src, NewWorker(cal), m, pub, box),
	}
}

// stepAt processes one frame holding a target per center.
func (h *harness) stepAt(seq uint64, centers ...float64) {
	set := frameAt(h.cal, seq, centers...)
	w := NewWorker(h.cal)
	_ = w.ProcessAsync(set)
	res, _ := w.Await(context.Background())
	h.runner.step(context.Background(), res)
}

func TestRunner_RunsUntilEndOfInput(t *testing.T) {
	cal := calibration(t)
	src := &sliceSource{frames: []vision.Frame{
		frameAt(cal, 1, 320),
		frameAt(cal, 2, 160, 480),
		frameAt(cal, 3, 100, 320, 540),
	}}
	h := newHarness(t, src)

	require.NoError(t, h.runner.Run(context.Background()))
	assert.Equal(t, uint64(3), h.runner.Frames())
	assert.Equal(t, 3.0, telemetry.GetNumber(h.table, telemetry.KeyTargetCount, 0))
	assert.Equal(t, "Discovering", telemetry.GetString(h.table, telemetry.KeyCameraState, ""))
}

func TestRunner_EmptyInput(t *testing.T) {
	h := newHarness(t, &sliceSource{})
	require.NoError(t, h.runner.Run(context.Background()))
	assert.Zero(t, h.runner.Frames())
}

func TestRunner_ReadErrorIsReturned(t *testing.T) {
	boom := errors.New("pipe broken")
	cal := calibration(t)

	h := newHarness(t, &sliceSource{err: boom})
	assert.ErrorIs(t, h.runner.Run(context.Background()), boom)

	h = newHarness(t, &sliceSource{frames: []vision.Frame{frameAt(cal, 1, 320)}, err: boom})
	assert.ErrorIs(t, h.runner.Run(context.Background()), boom)
	assert.Equal(t, uint64(1), h.runner.Frames(), "frames read before the error are processed")
}

func TestRunner_StopsWhenCancelled(t *testing.T) {
	cal := calibration(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var frames []vision.Frame
	for i := 1; i <= 100; i++ {
		frames = append(frames, frameAt(cal, uint64(i), 320))
	}
	src := &sliceSource{frames: frames, onNext: func(call int) {
		if call == 5 {
			cancel()
		}
	}}
	h := newHarness(t, src)

	require.NoError(t, h.runner.Run(ctx))
	assert.Less(t, h.runner.Frames(), uint64(100))
}

func TestRunner_ButtonSelectsAndLocks(t *testing.T) {
	h := newHarness(t, &sliceSource{})
	h.stepAt(1, 320)
	require.Equal(t, control.Discovering, h.machine.State())

	h.box.Put(command.Command{Code: command.ButtonA})
	h.stepAt(2, 320)
	assert.Equal(t, control.Locked, h.machine.State(), "a centered target locks on the first tracked frame")

	h.box.Put(command.Command{Code: command.ButtonA})
	h.stepAt(3, 320)
	assert.Equal(t, control.Driving, h.machine.State())
	assert.Equal(t, true, telemetry.GetBool(h.table, telemetry.KeySelectedDrive, false))

	h.box.Put(command.Command{Code: command.ButtonB})
	h.stepAt(4, 320)
	assert.Equal(t, control.Discovering, h.machine.State())
}

func TestRunner_UnboundButtonIgnored(t *testing.T) {
	h := newHarness(t, &sliceSource{})
	h.stepAt(1, 320)

	h.box.Put(command.Command{Code: command.ButtonY})
	h.stepAt(2, 320)
	assert.Equal(t, control.Discovering, h.machine.State())
}

func TestRunner_UnrecognizedCommand(t *testing.T) {
	h := newHarness(t, &sliceSource{})
	h.stepAt(1, 320)

	h.box.Put(command.Command{Code: command.LeftTrigger})
	h.stepAt(2, 320)
	assert.Equal(t, control.Discovering, h.machine.State())
	assert.False(t, h.box.Available(), "the command is consumed")
}

func TestRunner_AxisCommandsJog(t *testing.T) {
	h := newHarness(t, &sliceSource{})
	h.box.Put(command.Command{Code: command.PanAxis, Value: 0.5})
	h.stepAt(1)
	assert.Equal(t, control.Panning, h.machine.State())

	h.box.Put(command.Command{Code: command.PanAxis, Value: 0})
	h.stepAt(2)
	assert.Equal(t, control.Discovering, h.machine.State())
}

func TestRunner_CalibrateToggles(t *testing.T) {
	h := newHarness(t, &sliceSource{})
	h.box.Put(command.Command{Code: command.LeftShoulder})
	h.stepAt(1)
	assert.Equal(t, control.Calibrating, h.machine.State())

	h.box.Put(command.Command{Code: command.LeftShoulder})
	h.stepAt(2)
	assert.Equal(t, control.Discovering, h.machine.State())
}

func TestRunner_ScoringDirection(t *testing.T) {
	h := newHarness(t, &sliceSource{})
	h.stepAt(1, 160, 480)

	h.table.Put(telemetry.KeyScoringDirection, "Right")
	h.stepAt(2, 160, 480)
	assert.Equal(t, control.AutoLocked, h.machine.State())
	_, ok := h.table.Get(telemetry.KeyScoringDirection)
	assert.False(t, ok, "the request is consumed")

	sel, ok := h.machine.Selected()
	require.True(t, ok)
	assert.Greater(t, sel.OffsetX, 0.0, "right target tracked")
}

func TestRunner_UnknownScoringDirection(t *testing.T) {
	h := newHarness(t, &sliceSource{})
	h.stepAt(1, 320)
	h.table.Put(telemetry.KeyScoringDirection, "Up")
	h.stepAt(2, 320)
	assert.Equal(t, control.Discovering, h.machine.State())
}

func TestRunner_StateOverride(t *testing.T) {
	h := newHarness(t, &sliceSource{})
	h.stepAt(1, 320)
	h.box.Put(command.Command{Code: command.ButtonA})
	h.stepAt(2, 320)
	require.Equal(t, control.Locked, h.machine.State())

	h.table.Put(telemetry.KeyStateOverride, "Driving")
	h.stepAt(3, 320)
	assert.Equal(t, control.Locked, h.machine.State(), "only Discovering can be forced")

	h.table.Put(telemetry.KeyStateOverride, "discovering")
	h.stepAt(4, 320)
	assert.Equal(t, control.Discovering, h.machine.State())
	_, ok := h.table.Get(telemetry.KeyStateOverride)
	assert.False(t, ok)
}

func TestRunner_SnapshotOnRightShoulder(t *testing.T) {
	h := newHarness(t, &sliceSource{})
	rec := &recordingRecorder{}
	h.runner.SetRecorder(rec)

	h.stepAt(1, 320)
	h.box.Put(command.Command{Code: command.ButtonA})
	h.stepAt(2, 320)
	h.box.Put(command.Command{Code: command.RightShoulder})
	h.stepAt(3, 320)

	require.Len(t, rec.frames, 1)
	f := rec.frames[0]
	assert.Equal(t, uint64(3), f.Seq)
	assert.Equal(t, "Locked", f.State)
	assert.Len(t, f.Rects, 2)
	require.Len(t, f.Targets, 1)
	assert.InDelta(t, 320, f.Targets[0].CenterX, 1e-6)
	require.NotNil(t, f.Selected)
	assert.Equal(t, 90, f.PanDeg)

	h.stepAt(4, 320)
	assert.Len(t, rec.frames, 1, "one snapshot per request")
}

func TestRunner_SnapshotWithoutRecorder(t *testing.T) {
	h := newHarness(t, &sliceSource{})
	h.box.Put(command.Command{Code: command.RightShoulder})
	assert.NotPanics(t, func() { h.stepAt(1, 320) })
}

func TestRunner_SnapshotErrorIsAbsorbed(t *testing.T) {
	h := newHarness(t, &sliceSource{})
	rec := &recordingRecorder{err: errors.New("disk full")}
	h.runner.SetRecorder(rec)
	h.box.Put(command.Command{Code: command.RightShoulder})
	h.stepAt(1, 320)
	h.stepAt(2, 320)
	assert.Len(t, rec.frames, 1)
	assert.Equal(t, uint64(2), h.runner.Frames())
}

func TestEventFor(t *testing.T) {
	cases := []struct {
		code byte
		want control.Trigger
	}{
		{command.ButtonA, control.ButtonA},
		{command.ButtonB, control.ButtonB},
		{command.ButtonX, control.ButtonX},
		{command.ButtonY, control.ButtonY},
		{command.PanAxis, control.PanAxis},
		{command.TiltAxis, control.TiltAxis},
		{command.LeftThumb, control.CenterMount},
		{command.LeftShoulder, control.Calibrate},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			e, ok := EventFor(command.Command{Code: tc.code, Value: -0.25})
			require.True(t, ok)
			assert.Equal(t, tc.want, e.Trigger)
		})
	}

	e, _ := EventFor(command.Command{Code: command.TiltAxis, Value: -0.25})
	assert.Equal(t, -0.25, e.Value)

	for _, code := range []byte{command.RightThumb, command.RightShoulder, command.LeftTrigger, command.RightTrigger} {
		_, ok := EventFor(command.Command{Code: code})
		assert.False(t, ok, "code %q", code)
	}
}
