package compute

import (
	"math"
	"time"

	"github.com/focusmonitor/focusmonitor/agent/internal/source"
)

// SamplesPerSecond is the number of consecutive samples folded into one
// SecondSummary.
const SamplesPerSecond = 5

// Nose instability cadence.
const (
	// noseWindowSeconds is how many produced seconds share one nose_std_avg.
	noseWindowSeconds = 5

	// minNosePoints is the fewest face-present points needed to recompute it.
	minNosePoints = 5

	noseWeightX = 2.0
	noseWeightY = 1.0
)

// Thresholds are the per-user classification limits produced by calibration.
// A Thresholds value is never modified; recalibration replaces it.
type Thresholds struct {
	EyeClosedness float64 `json:"eye_closedness_threshold"`
	GazeYaw       float64 `json:"gaze_yaw_threshold"`
	GazePitch     float64 `json:"gaze_pitch_threshold"`
}

// SecondSummary aggregates the samples of one second.
type SecondSummary struct {
	Timestamp   time.Time `json:"timestamp"`
	Samples     int       `json:"samples"` // samples folded in, nominally SamplesPerSecond
	LookingAway int       `json:"looking_away_count"`
	Sleeping    int       `json:"sleeping_count"`
	NoFace      int       `json:"no_face_count"`
	NoseStdAvg  float64   `json:"nose_std_avg"` // refreshed every noseWindowSeconds seconds
}

// Aggregator folds consecutive samples into SecondSummary values.
// It is not safe for concurrent use; the monitor tick owns it.
type Aggregator struct {
	th Thresholds

	group        []source.Sample
	noseX, noseY []float64
	noseStd      float64
	produced     int // seconds emitted since the last Reset
}

// NewAggregator returns an Aggregator classifying against th.
func NewAggregator(th Thresholds) *Aggregator {
	return &Aggregator{
		th:    th,
		group: make([]source.Sample, 0, SamplesPerSecond),
		noseX: make([]float64, 0, noseWindowSeconds*SamplesPerSecond),
		noseY: make([]float64, 0, noseWindowSeconds*SamplesPerSecond),
	}
}

// Thresholds returns the thresholds the aggregator classifies against.
func (a *Aggregator) Thresholds() Thresholds { return a.th }

// Pending returns the number of samples waiting in the current second.
func (a *Aggregator) Pending() int { return len(a.group) }

// Add appends s to the current second. When the second is complete it
// returns the summary stamped with now and true.
func (a *Aggregator) Add(s source.Sample, now time.Time) (SecondSummary, bool) {
	a.group = append(a.group, s)
	if len(a.group) < SamplesPerSecond {
		return SecondSummary{}, false
	}
	sum := a.fold(now)
	a.group = a.group[:0]
	return sum, true
}

// Reset discards the partial second, the nose buffer and the carried
// instability value.
func (a *Aggregator) Reset() {
	a.group = a.group[:0]
	a.noseX = a.noseX[:0]
	a.noseY = a.noseY[:0]
	a.noseStd = 0
	a.produced = 0
}

func (a *Aggregator) fold(now time.Time) SecondSummary {
	sum := SecondSummary{Timestamp: now, Samples: len(a.group)}

	for _, s := range a.group {
		if !s.FaceDetected {
			sum.NoFace++
			continue
		}
		if math.Abs(s.GazeYawDeg) > a.th.GazeYaw || math.Abs(s.GazePitchDeg) > a.th.GazePitch {
			sum.LookingAway++
		}
		if s.EyeClosedness > a.th.EyeClosedness {
			sum.Sleeping++
		}
		a.noseX = append(a.noseX, s.NoseX)
		a.noseY = append(a.noseY, s.NoseY)
	}

	a.produced++
	if a.produced%noseWindowSeconds == 0 {
		if len(a.noseX) >= minNosePoints {
			a.noseStd = (noseWeightX*stddev(a.noseX) + noseWeightY*stddev(a.noseY)) /
				(noseWeightX + noseWeightY)
		}
		a.noseX = a.noseX[:0]
		a.noseY = a.noseY[:0]
	}
	sum.NoseStdAvg = a.noseStd

	return sum
}

// stddev returns the population standard deviation of xs.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
