// Package monitor drives the attention pipeline for one session.
//
// A Monitor is in one of two modes. While Calibrating, each tick feeds the
// latest sample to a calibrate.Calibrator; once enough face samples are
// collected the derived thresholds are installed and the mode switches to
// Recording. While Recording, each tick feeds the sample to a
// compute.Aggregator; every completed second goes to the sinks and into the
// minute buffer, and a full buffer is scored with compute.Compute and
// cleared.
//
// Recalibrate drops the in-flight second and minute and returns to
// Calibrating. Every mode change goes through transition.
//
// Sinks are called after the monitor lock is released. A sink error or panic
// is logged and never stops the tick.
package monitor
