// Package pipeline runs the frame loop: it hands each frame to a single
// worker, reads the next frame meanwhile, and feeds the result to the
// control machine together with the pending driver command.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/team997coders/hatchtracker/internal/logic/geometry"
	"github.com/team997coders/hatchtracker/internal/logic/targeting"
	"github.com/team997coders/hatchtracker/internal/vision"
)

var (
	// ErrBusy is returned by ProcessAsync while a frame is in flight.
	ErrBusy = errors.New("pipeline: frame already in flight")
	// ErrIdle is returned by Await when no frame was submitted.
	ErrIdle = errors.New("pipeline: no frame in flight")
)

// Result is one processed frame.
type Result struct {
	Frame   vision.Frame
	Targets targeting.Set
	Elapsed time.Duration
}

// Worker pairs the rectangles of one frame at a time.
type Worker struct {
	cal geometry.Calibration

	mu       sync.Mutex
	inflight bool
	done     chan Result
}

// NewWorker returns a worker measuring targets with cal.
func NewWorker(cal geometry.Calibration) *Worker {
	return &Worker{cal: cal, done: make(chan Result, 1)}
}

// ProcessAsync starts pairing f in the background.
func (w *Worker) ProcessAsync(f vision.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inflight {
		return ErrBusy
	}
	w.inflight = true
	go func() {
		start := time.Now()
		set := targeting.Pair(f.Rects, w.cal)
		w.done <- Result{Frame: f, Targets: set, Elapsed: time.Since(start)}
	}()
	return nil
}

// Await blocks until the frame in flight is processed. A cancelled wait
// leaves the frame in flight; the next Await collects it.
func (w *Worker) Await(ctx context.Context) (Result, error) {
	w.mu.Lock()
	if !w.inflight {
		w.mu.Unlock()
		return Result{}, ErrIdle
	}
	w.mu.Unlock()

	select {
	case res := <-w.done:
		w.mu.Lock()
		w.inflight = false
		w.mu.Unlock()
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
