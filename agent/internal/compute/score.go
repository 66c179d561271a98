package compute

import (
	"math"
	"time"
)

// Baseline is the score before any deduction.
const Baseline = 100

// Policy constants of the minute scorer.
const (
	// FrameThreshold is how many of SamplesPerSecond samples must match for
	// a second to count as looking away or sleeping.
	FrameThreshold = 3

	// LookingAwayGraceSeconds looking-away seconds per minute are free.
	LookingAwayGraceSeconds = 10

	// SleepingGraceSeconds is the free length of an unbroken sleeping run.
	SleepingGraceSeconds = 10

	// UnstableWindowSeconds is the width of the sliding nose-motion window.
	UnstableWindowSeconds = 5

	// UnstableNoseStdThreshold is the window mean of NoseStdAvg above which
	// every second of the window is marked unstable.
	UnstableNoseStdThreshold = 0.015

	// UnstableRate is the deduction per unstable second.
	UnstableRate = 1.0

	// MinAbsentRunSeconds is the shortest absent run counted in the ratio.
	MinAbsentRunSeconds = 2
)

// Rates are the configurable deductions in points per second.
type Rates struct {
	LookingAway float64
	Sleeping    float64
}

// DefaultRates returns the rates used when none are configured.
func DefaultRates() Rates {
	return Rates{LookingAway: 1, Sleeping: 5}
}

// Deductions is the point breakdown behind a ScoreResult.
type Deductions struct {
	Absence     float64 `json:"absence"`
	LookingAway float64 `json:"looking_away"`
	Sleeping    float64 `json:"sleeping"`
	Unstable    float64 `json:"unstable"`
}

// Total returns the sum of all deductions.
func (d Deductions) Total() float64 {
	return d.Absence + d.LookingAway + d.Sleeping + d.Unstable
}

// ScoreResult is the outcome of scoring one minute of SecondSummary values.
type ScoreResult struct {
	Timestamp          time.Time `json:"timestamp"`
	ConcentrationScore int       `json:"concentration_score"` // 0–100
	AbsenceRatio       int       `json:"absence_ratio"`       // 0–100, percent of seconds in counted absent runs
	Seconds            int       `json:"seconds"`             // number of summaries scored

	Deductions Deductions `json:"deductions"`

	// Classification counts, kept for auditing the deductions.
	LookingAwaySeconds int `json:"looking_away_seconds"`
	ExtraSleepSeconds  int `json:"extra_sleep_seconds"`
	UnstableSeconds    int `json:"unstable_seconds"`
	AbsentSeconds      int `json:"absent_seconds"`
}

// Compute scores seconds with a deduction formula. It is a pure function of
// its arguments.
//
//	absence      = round(Baseline × absence_ratio / 100)       (applied first)
//	looking_away = max(0, n_away − 10) × rates.LookingAway
//	sleeping     = seconds beyond the 10th of each unbroken sleep run × rates.Sleeping
//	unstable     = seconds in any 5-s window with mean nose std > 0.015 × 1
//	score        = clamp(round(Baseline − Σ deductions), 0, 100)
//
// An empty input scores 100 with a zero absence ratio.
func Compute(seconds []SecondSummary, rates Rates, now time.Time) ScoreResult {
	out := ScoreResult{Timestamp: now, Seconds: len(seconds)}
	if len(seconds) == 0 {
		out.ConcentrationScore = Baseline
		return out
	}

	out.AbsentSeconds = countedAbsentSeconds(seconds)
	out.AbsenceRatio = int(roundHalfEven(100 * float64(out.AbsentSeconds) / float64(len(seconds))))
	out.Deductions.Absence = roundHalfEven(Baseline * float64(out.AbsenceRatio) / 100)

	out.LookingAwaySeconds = lookingAwaySeconds(seconds)
	if out.LookingAwaySeconds > LookingAwayGraceSeconds {
		out.Deductions.LookingAway = float64(out.LookingAwaySeconds-LookingAwayGraceSeconds) * rates.LookingAway
	}

	out.ExtraSleepSeconds = extraSleepSeconds(seconds)
	out.Deductions.Sleeping = float64(out.ExtraSleepSeconds) * rates.Sleeping

	out.UnstableSeconds = unstableSeconds(seconds)
	out.Deductions.Unstable = float64(out.UnstableSeconds) * UnstableRate

	score := roundHalfEven(Baseline - out.Deductions.Total())
	out.ConcentrationScore = int(clamp(score, 0, Baseline))
	return out
}

// lookingAwaySeconds counts seconds whose looking-away frames reach the
// frame threshold.
func lookingAwaySeconds(seconds []SecondSummary) int {
	n := 0
	for _, s := range seconds {
		if s.LookingAway >= frameThreshold(s.Samples) {
			n++
		}
	}
	return n
}

// extraSleepSeconds counts, over unbroken runs of sleeping seconds, every
// second past the grace length. A non-sleeping second resets the run.
func extraSleepSeconds(seconds []SecondSummary) int {
	run, extra := 0, 0
	for _, s := range seconds {
		if s.Sleeping < frameThreshold(s.Samples) {
			run = 0
			continue
		}
		run++
		if run > SleepingGraceSeconds {
			extra++
		}
	}
	return extra
}

// unstableSeconds slides a window over the seconds and returns how many
// seconds fall in at least one window whose mean NoseStdAvg exceeds the
// threshold.
func unstableSeconds(seconds []SecondSummary) int {
	marked := make([]bool, len(seconds))
	for i := 0; i+UnstableWindowSeconds <= len(seconds); i++ {
		var sum float64
		for _, s := range seconds[i : i+UnstableWindowSeconds] {
			sum += s.NoseStdAvg
		}
		if sum/UnstableWindowSeconds > UnstableNoseStdThreshold {
			for j := i; j < i+UnstableWindowSeconds; j++ {
				marked[j] = true
			}
		}
	}
	n := 0
	for _, m := range marked {
		if m {
			n++
		}
	}
	return n
}

// countedAbsentSeconds returns the total length of absent runs that are at
// least MinAbsentRunSeconds long. Isolated absent seconds are ignored.
func countedAbsentSeconds(seconds []SecondSummary) int {
	counted, run := 0, 0
	for _, s := range seconds {
		if isAbsent(s) {
			run++
			continue
		}
		if run >= MinAbsentRunSeconds {
			counted += run
		}
		run = 0
	}
	if run >= MinAbsentRunSeconds {
		counted += run
	}
	return counted
}

// isAbsent reports whether no face was seen in any sample of the second.
func isAbsent(s SecondSummary) bool {
	return s.NoFace >= nominalSamples(s.Samples)
}

// frameThreshold scales FrameThreshold to the number of samples actually
// folded into a second, rounding up: 5→3, 4→3, 3→2, 2→2, 1→1.
func frameThreshold(samples int) int {
	n := nominalSamples(samples)
	return (n*FrameThreshold + SamplesPerSecond - 1) / SamplesPerSecond
}

// nominalSamples treats an unset sample count as a full second.
func nominalSamples(samples int) int {
	if samples <= 0 {
		return SamplesPerSecond
	}
	return samples
}

// roundHalfEven rounds to the nearest integer, ties to even.
func roundHalfEven(v float64) float64 {
	return math.RoundToEven(v)
}

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
