package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/team997coders/hatchtracker/internal/command"
	"github.com/team997coders/hatchtracker/internal/debug"
	"github.com/team997coders/hatchtracker/internal/logic/control"
	"github.com/team997coders/hatchtracker/internal/logic/geometry"
	"github.com/team997coders/hatchtracker/internal/snapshot"
	"github.com/team997coders/hatchtracker/internal/telemetry"
	"github.com/team997coders/hatchtracker/internal/vision"
)

// FrameSource yields frames until io.EOF.
type FrameSource interface {
	Next() (vision.Frame, error)
}

// Recorder stores a snapshot of a frame.
type Recorder interface {
	Record(ctx context.Context, f snapshot.Frame) error
}

// Runner owns the frame loop.
type Runner struct {
	source   FrameSource
	worker   *Worker
	machine  *control.Machine
	pub      *telemetry.Publisher
	commands *command.Mailbox
	recorder Recorder

	snapshotPending bool
	frames          uint64
}

// NewRunner wires a frame loop. commands may be nil when no command socket
// is open.
func NewRunner(src FrameSource, w *Worker, m *control.Machine, pub *telemetry.Publisher, commands *command.Mailbox) *Runner {
	return &Runner{
		source:   src,
		worker:   w,
		machine:  m,
		pub:      pub,
		commands: commands,
	}
}

// SetRecorder enables snapshots on the right shoulder button.
func (r *Runner) SetRecorder(rec Recorder) {
	r.recorder = rec
}

// Frames returns the number of frames processed so far.
func (r *Runner) Frames() uint64 { return r.frames }

type pumped struct {
	frame vision.Frame
	err   error
}

// Run processes frames until the source ends or ctx is cancelled. The next
// frame is read while the current one is paired.
func (r *Runner) Run(ctx context.Context) error {
	frame, err := r.source.Next()
	if err != nil {
		return endOfInput(err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.worker.ProcessAsync(frame); err != nil {
			return err
		}

		next := make(chan pumped, 1)
		go func() {
			f, err := r.source.Next()
			next <- pumped{frame: f, err: err}
		}()

		res, err := r.worker.Await(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		r.step(ctx, res)

		select {
		case p := <-next:
			if p.err != nil {
				return endOfInput(p.err)
			}
			frame = p.frame
		case <-ctx.Done():
			return nil
		}
	}
}

func endOfInput(err error) error {
	if errors.Is(err, io.EOF) {
		debug.Info("Vision input ended")
		return nil
	}
	return fmt.Errorf("read frame: %w", err)
}

// step handles one processed frame: the pending command first, then the
// external table inputs, then the state handler.
func (r *Runner) step(ctx context.Context, res Result) {
	r.frames++
	if r.commands != nil {
		if cmd, ok := r.commands.Take(); ok {
			r.dispatch(cmd)
		}
	}
	r.applyTableInputs()
	r.machine.Update(res.Targets)
	debug.Frame(r.machine.State().String(), len(res.Targets), res.Elapsed)

	if r.snapshotPending {
		r.snapshotPending = false
		r.record(ctx, res)
	}
}

func (r *Runner) dispatch(cmd command.Command) {
	if cmd.Code == command.RightShoulder {
		r.snapshotPending = true
		return
	}
	e, ok := EventFor(cmd)
	if !ok {
		debug.Warn("Command not recognized: %s", cmd)
		return
	}
	r.machine.Fire(e)
}

// EventFor maps a driver station command to a machine event.
func EventFor(cmd command.Command) (control.Event, bool) {
	switch cmd.Code {
	case command.ButtonA:
		return control.Event{Trigger: control.ButtonA}, true
	case command.ButtonB:
		return control.Event{Trigger: control.ButtonB}, true
	case command.ButtonX:
		return control.Event{Trigger: control.ButtonX}, true
	case command.ButtonY:
		return control.Event{Trigger: control.ButtonY}, true
	case command.PanAxis:
		return control.Event{Trigger: control.PanAxis, Value: cmd.Value}, true
	case command.TiltAxis:
		return control.Event{Trigger: control.TiltAxis, Value: cmd.Value}, true
	case command.LeftThumb:
		return control.Event{Trigger: control.CenterMount}, true
	case command.LeftShoulder:
		return control.Event{Trigger: control.Calibrate}, true
	}
	return control.Event{}, false
}

// applyTableInputs consumes the values other robot programs write to the
// table between frames.
func (r *Runner) applyTableInputs() {
	switch dir := r.pub.TakeScoringDirection(); dir {
	case "":
	case "Left":
		r.machine.Fire(control.Event{Trigger: control.AutoLeft})
	case "Right":
		r.machine.Fire(control.Event{Trigger: control.AutoRight})
	default:
		debug.Warn("unknown scoring direction %q", dir)
	}

	name := r.pub.TakeStateOverride()
	if name == "" {
		return
	}
	st, err := control.ParseState(name)
	if err != nil {
		debug.Warn("state override: %v", err)
		return
	}
	if st != control.Discovering {
		debug.Warn("state override to %s not supported", st)
		return
	}
	r.machine.Fire(control.Event{Trigger: control.Reset})
}

func (r *Runner) record(ctx context.Context, res Result) {
	if r.recorder == nil {
		debug.Warn("snapshot requested but snapshots are disabled")
		return
	}
	if err := r.recorder.Record(ctx, r.snapshotOf(res)); err != nil {
		debug.Error(err)
	}
}

func (r *Runner) snapshotOf(res Result) snapshot.Frame {
	angles := r.machine.Angles()
	f := snapshot.Frame{
		Seq:     res.Frame.Seq,
		State:   r.machine.State().String(),
		PanDeg:  angles.Pan,
		TiltDeg: angles.Tilt,
		Rects:   res.Frame.Rects,
		Targets: make([]geometry.Summary, len(res.Targets)),
	}
	for i, t := range res.Targets {
		f.Targets[i] = t.Summarize()
	}
	if sel, ok := r.machine.Selected(); ok {
		f.Selected = &sel
	}
	return f
}
