package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Gaze angle reached when the eye-look blendshapes saturate at 1.0.
const (
	maxGazeYawDeg   = 30.0
	maxGazePitchDeg = 20.0
)

// Blendshape category names read by DecodeFrame.
const (
	bsBlinkLeft     = "eyeBlinkLeft"
	bsBlinkRight    = "eyeBlinkRight"
	bsLookOutLeft   = "eyeLookOutLeft"
	bsLookInLeft    = "eyeLookInLeft"
	bsLookOutRight  = "eyeLookOutRight"
	bsLookInRight   = "eyeLookInRight"
	bsLookUpLeft    = "eyeLookUpLeft"
	bsLookDownLeft  = "eyeLookDownLeft"
	bsLookUpRight   = "eyeLookUpRight"
	bsLookDownRight = "eyeLookDownRight"
)

// ErrMalformedFrame is returned by DecodeFrame for frames whose values are
// out of range or not finite.
var ErrMalformedFrame = errors.New("source: malformed frame")

// Frame is the JSON message published by a face tracker.
//
// Either the measurement fields or Blendshapes may be set. When Blendshapes
// is non-empty the face is considered detected and eye closure and gaze are
// derived from it; the nose position still comes from NoseX/NoseY.
type Frame struct {
	Timestamp     time.Time          `json:"timestamp"`
	FaceDetected  bool               `json:"face_detected"`
	EyeClosedness float64            `json:"eye_closedness"`
	GazeYawDeg    float64            `json:"gaze_yaw_deg"`
	GazePitchDeg  float64            `json:"gaze_pitch_deg"`
	NoseX         float64            `json:"nose_x"`
	NoseY         float64            `json:"nose_y"`
	Blendshapes   map[string]float64 `json:"blendshapes,omitempty"`
}

// DecodeFrame parses one JSON frame. now is used when the frame carries no
// timestamp.
func DecodeFrame(payload []byte, now time.Time) (Sample, error) {
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return Sample{}, fmt.Errorf("source: decode frame: %w", err)
	}
	return f.Sample(now)
}

// Sample converts f into a Sample, validating its measurements.
func (f Frame) Sample(now time.Time) (Sample, error) {
	ts := f.Timestamp
	if ts.IsZero() {
		ts = now
	}

	if len(f.Blendshapes) > 0 {
		f.FaceDetected = true
		f.EyeClosedness, f.GazeYawDeg, f.GazePitchDeg = fromBlendshapes(f.Blendshapes)
	}
	if !f.FaceDetected {
		return NoFace(ts), nil
	}

	for _, v := range []float64{f.EyeClosedness, f.GazeYawDeg, f.GazePitchDeg, f.NoseX, f.NoseY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Sample{}, fmt.Errorf("%w: non-finite value", ErrMalformedFrame)
		}
	}
	if f.EyeClosedness < 0 || f.EyeClosedness > 1 {
		return Sample{}, fmt.Errorf("%w: eye_closedness %.3f outside [0, 1]", ErrMalformedFrame, f.EyeClosedness)
	}

	return Sample{
		Timestamp:     ts,
		FaceDetected:  true,
		EyeClosedness: f.EyeClosedness,
		GazeYawDeg:    f.GazeYawDeg,
		GazePitchDeg:  f.GazePitchDeg,
		NoseX:         f.NoseX,
		NoseY:         f.NoseY,
	}, nil
}

// fromBlendshapes derives eye closure and gaze angles from tracker
// blendshape scores. Missing categories count as 0.
//
// Yaw is the mean of (out - in) over both eyes, pitch the mean of
// (up - down), each scaled to degrees.
func fromBlendshapes(bs map[string]float64) (eye, yawDeg, pitchDeg float64) {
	eye = (bs[bsBlinkLeft] + bs[bsBlinkRight]) / 2

	lr := ((bs[bsLookOutLeft] - bs[bsLookInLeft]) + (bs[bsLookOutRight] - bs[bsLookInRight])) / 2
	ud := ((bs[bsLookUpLeft] - bs[bsLookDownLeft]) + (bs[bsLookUpRight] - bs[bsLookDownRight])) / 2

	return eye, lr * maxGazeYawDeg, ud * maxGazePitchDeg
}
