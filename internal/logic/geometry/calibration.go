package geometry

import (
	"fmt"
	"math"
	"strings"
)

// CameraModel identifies a supported physical camera.
type CameraModel int

const (
	LifecamHD3000 CameraModel = iota
	LifecamHD5000
	ELP550
)

func (m CameraModel) String() string {
	switch m {
	case LifecamHD3000:
		return "lifecam3000"
	case LifecamHD5000:
		return "lifecam5000"
	case ELP550:
		return "elp550"
	default:
		return fmt.Sprintf("CameraModel(%d)", int(m))
	}
}

// ParseCameraModel maps a config name (e.g. "lifecam5000") to a model.
func ParseCameraModel(name string) (CameraModel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lifecam3000", "lifecamhd3000", "hd-3000":
		return LifecamHD3000, nil
	case "lifecam5000", "lifecamhd5000", "hd-5000":
		return LifecamHD5000, nil
	case "elp550":
		return ELP550, nil
	default:
		return 0, fmt.Errorf("unsupported camera model: %q", name)
	}
}

// Calibration holds the constants measured for one camera model: the frame
// size in pixels and the physical width/height the frame covers at a known
// reference range. A Calibration is a value; copies never change.
type Calibration struct {
	Model          CameraModel
	FOVPixelWidth  float64
	FOVPixelHeight float64
	FOVWidthIn     float64 // physical width covered at RangeIn
	FOVHeightIn    float64 // physical height covered at RangeIn
	RangeIn        float64 // reference range of the measurement
}

// CalibrationFor returns the reference constants for a camera model at
// 640x480. Vertical coverage follows the 4:3 sensor aspect.
func CalibrationFor(model CameraModel) (Calibration, error) {
	var widthIn, rangeIn float64
	switch model {
	case LifecamHD3000:
		widthIn, rangeIn = 12.0, 10.5
	case LifecamHD5000:
		widthIn, rangeIn = 79.5, 87.5
	case ELP550:
		widthIn, rangeIn = 54, 85.5
	default:
		return Calibration{}, fmt.Errorf("no calibration for %v", model)
	}
	return Calibration{
		Model:          model,
		FOVPixelWidth:  640,
		FOVPixelHeight: 480,
		FOVWidthIn:     widthIn,
		FOVHeightIn:    widthIn * 480 / 640,
		RangeIn:        rangeIn,
	}, nil
}

// WithResolution returns a copy measured against a different frame size.
// Physical coverage does not change with resolution.
func (c Calibration) WithResolution(widthPx, heightPx float64) Calibration {
	c.FOVPixelWidth = widthPx
	c.FOVPixelHeight = heightPx
	return c
}

// Validate rejects calibrations that would divide by zero per frame.
func (c Calibration) Validate() error {
	if c.FOVPixelWidth <= 0 || c.FOVPixelHeight <= 0 {
		return fmt.Errorf("fov pixel size must be > 0, got %gx%g", c.FOVPixelWidth, c.FOVPixelHeight)
	}
	if c.FOVWidthIn <= 0 || c.FOVHeightIn <= 0 {
		return fmt.Errorf("fov physical size must be > 0, got %gx%g in", c.FOVWidthIn, c.FOVHeightIn)
	}
	if c.RangeIn <= 0 {
		return fmt.Errorf("reference range must be > 0, got %g in", c.RangeIn)
	}
	return nil
}

// TanHalfHorizontal returns tan of half the horizontal field of view.
func (c Calibration) TanHalfHorizontal() float64 {
	return c.FOVWidthIn / (2 * c.RangeIn)
}

// TanHalfVertical returns tan of half the vertical field of view.
func (c Calibration) TanHalfVertical() float64 {
	return c.FOVHeightIn / (2 * c.RangeIn)
}

// TanHalfDiagonal returns tan of half the diagonal field of view.
func (c Calibration) TanHalfDiagonal() float64 {
	return math.Hypot(c.FOVWidthIn, c.FOVHeightIn) / (2 * c.RangeIn)
}

// PixelDiagonal returns the frame diagonal in pixels.
func (c Calibration) PixelDiagonal() float64 {
	return math.Hypot(c.FOVPixelWidth, c.FOVPixelHeight)
}

// PixelArea returns the frame area in pixels.
func (c Calibration) PixelArea() float64 {
	return c.FOVPixelWidth * c.FOVPixelHeight
}

// PixelsPerInchAtReference returns the horizontal pixel density of an object
// standing at the reference range.
func (c Calibration) PixelsPerInchAtReference() float64 {
	return c.FOVPixelWidth / c.FOVWidthIn
}
