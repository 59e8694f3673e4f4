// Package vision reads the rectangles found by the external contour filter.
//
// The filter writes one JSON object per line and per frame:
//
//	{"seq": 41, "rects": [{"cx": 271.7, "cy": 240, "w": 44.3, "h": 16.1, "angle": -75.5}]}
//
// cx/cy is the rectangle center in pixels, w/h its size and angle its
// rotation in degrees, 0 down to -90.
package vision

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/team997coders/hatchtracker/internal/debug"
	"github.com/team997coders/hatchtracker/internal/logic/geometry"
)

// maxLineBytes bounds one frame line.
const maxLineBytes = 1 << 20

// Frame is the rectangle set of one processed camera frame.
type Frame struct {
	Seq      uint64
	Rects    []geometry.Rectangle
	Received time.Time
}

type rectJSON struct {
	CX    float64 `json:"cx"`
	CY    float64 `json:"cy"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Angle float64 `json:"angle"`
}

type frameJSON struct {
	Seq   uint64     `json:"seq"`
	Rects []rectJSON `json:"rects"`
}

// Source yields frames from a line-delimited JSON stream.
type Source struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
	seq     uint64
	now     func() time.Time
}

// NewSource reads frames from r.
func NewSource(r io.Reader) *Source {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	s := &Source{scanner: sc, now: time.Now}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Open reads frames from path, or from stdin when path is "-".
func Open(path string) (*Source, error) {
	if path == "" || path == "-" {
		return NewSource(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vision input: %w", err)
	}
	return NewSource(f), nil
}

// Next returns the next frame. Blank lines are skipped and malformed lines
// are logged and skipped. It returns io.EOF when the stream ends.
func (s *Source) Next() (Frame, error) {
	for s.scanner.Scan() {
		s.line++
		raw := s.scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var fj frameJSON
		if err := json.Unmarshal(raw, &fj); err != nil {
			debug.Warn("vision input line %d: %v", s.line, err)
			continue
		}
		s.seq++
		if fj.Seq == 0 {
			fj.Seq = s.seq
		}
		frame := Frame{Seq: fj.Seq, Received: s.now(), Rects: make([]geometry.Rectangle, len(fj.Rects))}
		for i, r := range fj.Rects {
			frame.Rects[i] = geometry.NewRectangle(r.CX, r.CY, r.W, r.H, r.Angle)
		}
		return frame, nil
	}
	if err := s.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Frame{}, fmt.Errorf("vision input line %d: %w", s.line+1, err)
		}
		return Frame{}, fmt.Errorf("read vision input: %w", err)
	}
	return Frame{}, io.EOF
}

// Close closes the underlying reader when it has a Close method.
func (s *Source) Close() error {
	if s.closer == nil || s.closer == os.Stdin {
		return nil
	}
	return s.closer.Close()
}
