// Package calibrate derives per-user classification thresholds from a short
// run of face samples taken while the user is paying attention.
package calibrate

import (
	"errors"
	"math"

	"github.com/focusmonitor/focusmonitor/agent/internal/compute"
	"github.com/focusmonitor/focusmonitor/agent/internal/source"
)

// DefaultRequiredSamples is used when New is given a non-positive count.
const DefaultRequiredSamples = 50

// ErrInsufficientData is returned by Compute when no face sample was collected.
var ErrInsufficientData = errors.New("calibrate: no face samples collected")

// State is the calibrator lifecycle: Idle → Collecting → Done.
type State int

const (
	Idle State = iota
	Collecting
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Calibrator collects face samples and turns them into thresholds.
// It is not safe for concurrent use.
type Calibrator struct {
	required int
	state    State

	eyes    []float64
	yaws    []float64
	pitches []float64
}

// New returns an idle Calibrator that needs required face samples.
func New(required int) *Calibrator {
	if required <= 0 {
		required = DefaultRequiredSamples
	}
	return &Calibrator{required: required}
}

// Start discards anything collected so far and begins collecting.
func (c *Calibrator) Start() {
	c.eyes = c.eyes[:0]
	c.yaws = c.yaws[:0]
	c.pitches = c.pitches[:0]
	c.state = Collecting
}

// Add records s if it carries a face and reports whether the required count
// has been reached. Samples are ignored outside Collecting and once the count
// is reached. Add never changes the state.
func (c *Calibrator) Add(s source.Sample) bool {
	if c.state != Collecting {
		return false
	}
	if len(c.eyes) >= c.required {
		return true
	}
	if s.FaceDetected {
		c.eyes = append(c.eyes, s.EyeClosedness)
		c.yaws = append(c.yaws, s.GazeYawDeg)
		c.pitches = append(c.pitches, s.GazePitchDeg)
	}
	return len(c.eyes) >= c.required
}

// Compute derives thresholds from the collected samples and moves to Done.
//
//	eye   = mean + (1 - mean) / 3
//	yaw   = (max - min) / 2
//	pitch = (max - min) / 2
//
// With no samples it returns ErrInsufficientData and the state is unchanged.
func (c *Calibrator) Compute() (compute.Thresholds, error) {
	if len(c.eyes) == 0 {
		return compute.Thresholds{}, ErrInsufficientData
	}

	var mean float64
	for _, e := range c.eyes {
		mean += e
	}
	mean /= float64(len(c.eyes))

	th := compute.Thresholds{
		EyeClosedness: mean + (1-mean)/3,
		GazeYaw:       halfRange(c.yaws),
		GazePitch:     halfRange(c.pitches),
	}
	c.state = Done
	return th, nil
}

// State returns the current lifecycle state.
func (c *Calibrator) State() State { return c.state }

// Progress returns the number of face samples collected and required.
func (c *Calibrator) Progress() (collected, required int) {
	return len(c.eyes), c.required
}

func halfRange(xs []float64) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return (hi - lo) / 2
}
