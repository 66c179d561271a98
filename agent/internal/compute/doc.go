// Package compute reduces attention samples to seconds and seconds to
// minute scores.
//
// aggregate.go provides the stateful Aggregator. It folds every
// SamplesPerSecond consecutive samples into a SecondSummary, counting
// looking-away, sleeping and no-face frames against calibrated Thresholds.
// Face-present nose positions are buffered and, on every fifth produced
// second, turned into a 2:1 weighted mean of the x/y standard deviations
// (NoseStdAvg). The value is carried on each summary until the next refresh.
// The cadence counts seconds since the last Reset, independent of any minute
// boundary kept by the caller.
//
// score.go provides the pure Compute(seconds, rates, now) function that turns
// a minute of summaries into a ScoreResult: a 0–100 concentration score and
// an absence ratio, with the per-rule Deductions kept for auditing.
//
// When a summary holds fewer than SamplesPerSecond samples the frame
// threshold is scaled to ceil(samples × 3/5) and a second is absent only if
// all of its samples had no face.
package compute
