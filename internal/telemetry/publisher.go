package telemetry

import (
	"math"

	"github.com/team997coders/hatchtracker/internal/logic/geometry"
	"github.com/team997coders/hatchtracker/internal/logic/targeting"
)

// Keys written every frame.
const (
	KeyTargetFound       = "targetFound"
	KeyTargetCount       = "targetCount"
	KeyTargetAngles      = "hatchTargetAngles"
	KeyTargetRanges      = "hatchTargetRanges"
	KeyCameraYaw         = "cameraYaw"
	KeyCameraPitch       = "cameraPitch"
	KeySelectableTargets = "SelectableTargets"
	KeyCameraState       = "CameraState"

	selectedPrefix         = "SelectedTarget/"
	KeySelectedRange       = selectedPrefix + "RangeInInches"
	KeySelectedCameraAngle = selectedPrefix + "CameraAngleInDegrees"
	KeySelectedTargetAngle = selectedPrefix + "AngleToTargetInDegrees"
	KeySelectedActive      = selectedPrefix + "Active"
	KeySelectedDrive       = selectedPrefix + "DriveToTarget"
	KeySelectedNormalizedX = selectedPrefix + "NormalizedPointFromCenter/X"
	KeySelectedNormalizedY = selectedPrefix + "NormalizedPointFromCenter/Y"
)

// Keys written by other processes and consumed here.
const (
	KeyScoringDirection = "ScoringDirection"
	KeyStateOverride    = "StateOverride"
)

// Selected is the record published for the target being tracked.
type Selected struct {
	RangeIn          float64 `json:"range_in"`
	CameraAngleDeg   float64 `json:"camera_angle_deg"`
	AngleToTargetDeg float64 `json:"angle_to_target_deg"`
	OffsetX          float64 `json:"offset_x"`
	OffsetY          float64 `json:"offset_y"`
	DriveToTarget    bool    `json:"drive_to_target"`
}

// SelectedFrom derives the selected-target record. panDeg is the mount pan
// angle (90 = straight ahead); the bearing adds the target's horizontal
// angle inside the frame to the camera's yaw.
func SelectedFrom(t geometry.Target, panDeg int, drive bool) Selected {
	off := targeting.NormalizedOffset(t)
	cameraAngle := float64(panDeg - 90)
	inFrame := math.Atan(off.X*t.Calibration().TanHalfHorizontal()) * 180 / math.Pi
	return Selected{
		RangeIn:          t.Range(),
		CameraAngleDeg:   cameraAngle,
		AngleToTargetDeg: cameraAngle + inFrame,
		OffsetX:          off.X,
		OffsetY:          off.Y,
		DriveToTarget:    drive,
	}
}

// Publisher writes tracking results to a Table.
type Publisher struct {
	table Table
}

// NewPublisher returns a publisher writing to t.
func NewPublisher(t Table) *Publisher {
	return &Publisher{table: t}
}

// Table returns the underlying table.
func (p *Publisher) Table() Table { return p.table }

// WriteTargets publishes whether targets were found, how many, and their
// aspect angles (radians) and ranges (inches) left to right.
func (p *Publisher) WriteTargets(set targeting.Set) {
	angles := make([]float64, len(set))
	ranges := make([]float64, len(set))
	for i, t := range set {
		angles[i] = t.AspectAngle()
		ranges[i] = t.Range()
	}
	p.table.Put(KeyTargetFound, len(set) > 0)
	p.table.Put(KeyTargetCount, float64(len(set)))
	p.table.Put(KeyTargetAngles, angles)
	p.table.Put(KeyTargetRanges, ranges)
}

// WriteCamera publishes the mount angles in degrees.
func (p *Publisher) WriteCamera(panDeg, tiltDeg int) {
	p.table.Put(KeyCameraYaw, float64(panDeg))
	p.table.Put(KeyCameraPitch, float64(tiltDeg))
}

// WriteSelectable publishes the buttons that currently select a target.
func (p *Publisher) WriteSelectable(names []string) {
	out := make([]string, len(names))
	copy(out, names)
	p.table.Put(KeySelectableTargets, out)
}

// WriteState publishes the control state name.
func (p *Publisher) WriteState(name string) {
	p.table.Put(KeyCameraState, name)
}

// WriteSelected publishes s and marks the selection active.
func (p *Publisher) WriteSelected(s Selected) {
	p.writeSelected(s)
	p.table.Put(KeySelectedActive, true)
}

// ClearSelected zeroes the selection record and marks it inactive.
func (p *Publisher) ClearSelected() {
	p.writeSelected(Selected{})
	p.table.Put(KeySelectedActive, false)
}

func (p *Publisher) writeSelected(s Selected) {
	p.table.Put(KeySelectedRange, s.RangeIn)
	p.table.Put(KeySelectedCameraAngle, s.CameraAngleDeg)
	p.table.Put(KeySelectedTargetAngle, s.AngleToTargetDeg)
	p.table.Put(KeySelectedDrive, s.DriveToTarget)
	p.table.Put(KeySelectedNormalizedX, s.OffsetX)
	p.table.Put(KeySelectedNormalizedY, s.OffsetY)
}

// TakeScoringDirection returns and clears the requested scoring direction.
func (p *Publisher) TakeScoringDirection() string {
	return p.take(KeyScoringDirection)
}

// TakeStateOverride returns and clears the requested state override.
func (p *Publisher) TakeStateOverride() string {
	return p.take(KeyStateOverride)
}

func (p *Publisher) take(key string) string {
	v := GetString(p.table, key, "")
	if v != "" {
		p.table.Delete(key)
	}
	return v
}
