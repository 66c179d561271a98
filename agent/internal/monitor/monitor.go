package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/focusmonitor/focusmonitor/agent/internal/calibrate"
	"github.com/focusmonitor/focusmonitor/agent/internal/compute"
	"github.com/focusmonitor/focusmonitor/agent/internal/source"
)

// DefaultSecondsPerMinute is the minute buffer length.
const DefaultSecondsPerMinute = 60

// ErrWrongMode is returned when a sample is delivered to the consumer that
// is not active in the current mode.
var ErrWrongMode = errors.New("monitor: sample delivered in wrong mode")

// Sampler returns the latest sample without blocking.
type Sampler interface {
	Current() source.Sample
}

// Sink consumes the pipeline output. Calls happen synchronously from the tick,
// after the monitor lock is released.
type Sink interface {
	OnSecondSummary(compute.SecondSummary) error
	OnScoreResult(compute.ScoreResult) error
}

// Options configure a Monitor.
type Options struct {
	// SessionID labels the monitored session; a random UUID when empty.
	SessionID string

	// RequiredSamples is the calibration sample count.
	RequiredSamples int

	// Rates are used as given; a zero rate disables that deduction.
	Rates compute.Rates

	// Preset skips calibration and starts in Recording when set.
	Preset *compute.Thresholds

	// SecondsPerMinute overrides the minute buffer length (tests).
	SecondsPerMinute int
}

// Status is a point-in-time view of the monitor.
type Status struct {
	SessionID           string                 `json:"session_id"`
	Mode                string                 `json:"mode"`
	CalibrationState    string                 `json:"calibration_state"`
	CalibrationProgress int                    `json:"calibration_progress"`
	CalibrationRequired int                    `json:"calibration_required"`
	Thresholds          *compute.Thresholds    `json:"thresholds,omitempty"`
	LookingAwayRate     float64                `json:"looking_away_rate"`
	SleepingRate        float64                `json:"sleeping_rate"`
	MinuteFill          int                    `json:"minute_fill"`
	SecondsProduced     int64                  `json:"seconds_produced"`
	MinutesScored       int64                  `json:"minutes_scored"`
	Calibrations        int64                  `json:"calibrations"`
	LastSecond          *compute.SecondSummary `json:"last_second,omitempty"`
	LastScore           *compute.ScoreResult   `json:"last_score,omitempty"`
}

// Monitor runs the calibrate → aggregate → score pipeline for one session.
// All methods are safe for concurrent use.
type Monitor struct {
	src   Sampler
	sinks []Sink

	mu        sync.Mutex
	sessionID string
	mode      Mode
	cal       *calibrate.Calibrator
	agg       *compute.Aggregator
	th        *compute.Thresholds
	rates     compute.Rates
	perMinute int
	minute    []compute.SecondSummary

	secondsProduced int64
	minutesScored   int64
	calibrations    int64
	lastSecond      *compute.SecondSummary
	lastScore       *compute.ScoreResult
}

// emission is sink work collected under the lock and delivered after it.
type emission struct {
	second *compute.SecondSummary
	score  *compute.ScoreResult
}

// New returns a Monitor reading from src and delivering to sinks. It starts in
// Calibrating unless opts.Preset is set.
func New(src Sampler, opts Options, sinks ...Sink) *Monitor {
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.SecondsPerMinute <= 0 {
		opts.SecondsPerMinute = DefaultSecondsPerMinute
	}

	m := &Monitor{
		src:       src,
		sinks:     sinks,
		sessionID: opts.SessionID,
		mode:      Calibrating,
		cal:       calibrate.New(opts.RequiredSamples),
		rates:     opts.Rates,
		perMinute: opts.SecondsPerMinute,
		minute:    make([]compute.SecondSummary, 0, opts.SecondsPerMinute),
	}
	if opts.Preset != nil {
		m.install(*opts.Preset)
	} else {
		m.cal.Start()
	}
	return m
}

// SessionID returns the session label.
func (m *Monitor) SessionID() string { return m.sessionID }

// Mode returns the current mode.
func (m *Monitor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Run ticks every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			m.Tick(t)
		}
	}
}

// Tick reads the current sample and feeds it to the active consumer.
func (m *Monitor) Tick(now time.Time) {
	s := m.src.Current()

	m.mu.Lock()
	var out []emission
	switch m.mode {
	case Calibrating:
		m.calibrationSample(s)
	case Recording:
		out = m.recordingSample(s, now)
	}
	m.mu.Unlock()

	m.deliver(out)
}

// AddCalibrationSample feeds s to the calibrator. It returns ErrWrongMode
// when recording.
func (m *Monitor) AddCalibrationSample(s source.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != Calibrating {
		return fmt.Errorf("%w: calibration sample while %s", ErrWrongMode, m.mode)
	}
	m.calibrationSample(s)
	return nil
}

// AddRecordingSample feeds s to the aggregator and delivers any completed
// second or minute. It returns ErrWrongMode when calibrating.
func (m *Monitor) AddRecordingSample(s source.Sample, now time.Time) error {
	m.mu.Lock()
	if m.mode != Recording {
		mode := m.mode
		m.mu.Unlock()
		return fmt.Errorf("%w: recording sample while %s", ErrWrongMode, mode)
	}
	out := m.recordingSample(s, now)
	m.mu.Unlock()

	m.deliver(out)
	return nil
}

// Recalibrate drops the in-flight second and minute and restarts calibration.
// Thresholds stay installed until calibration completes.
func (m *Monitor) Recalibrate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.agg != nil {
		m.agg.Reset()
	}
	m.minute = m.minute[:0]
	m.cal.Start()
	m.mode = transition(m.mode, evRecalibrate)
	slog.Info("monitor: recalibration started", "session", m.sessionID)
}

// Install replaces the thresholds and switches to Recording.
func (m *Monitor) Install(th compute.Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.install(th)
}

// SetRates changes the deduction rates used for subsequent minutes.
func (m *Monitor) SetRates(r compute.Rates) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates = r
}

// Status returns a snapshot of the monitor state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	collected, required := m.cal.Progress()
	st := Status{
		SessionID:           m.sessionID,
		Mode:                m.mode.String(),
		CalibrationState:    m.cal.State().String(),
		CalibrationProgress: collected,
		CalibrationRequired: required,
		LookingAwayRate:     m.rates.LookingAway,
		SleepingRate:        m.rates.Sleeping,
		MinuteFill:          len(m.minute),
		SecondsProduced:     m.secondsProduced,
		MinutesScored:       m.minutesScored,
		Calibrations:        m.calibrations,
	}
	if m.th != nil {
		th := *m.th
		st.Thresholds = &th
	}
	if m.lastSecond != nil {
		sec := *m.lastSecond
		st.LastSecond = &sec
	}
	if m.lastScore != nil {
		res := *m.lastScore
		st.LastScore = &res
	}
	return st
}

// calibrationSample must be called with mu held.
func (m *Monitor) calibrationSample(s source.Sample) {
	if !m.cal.Add(s) {
		return
	}
	th, err := m.cal.Compute()
	if err != nil {
		slog.Warn("monitor: calibration failed, collecting again", "session", m.sessionID, "err", err)
		m.cal.Start()
		return
	}
	m.install(th)
}

// install must be called with mu held.
func (m *Monitor) install(th compute.Thresholds) {
	m.th = &th
	m.agg = compute.NewAggregator(th)
	m.minute = m.minute[:0]
	m.calibrations++
	m.mode = transition(m.mode, evCalibrated)
	slog.Info("monitor: thresholds installed",
		"session", m.sessionID,
		"eye_closedness", th.EyeClosedness,
		"gaze_yaw", th.GazeYaw,
		"gaze_pitch", th.GazePitch,
	)
}

// recordingSample must be called with mu held.
func (m *Monitor) recordingSample(s source.Sample, now time.Time) []emission {
	sum, ok := m.agg.Add(s, now)
	if !ok {
		return nil
	}
	m.secondsProduced++
	m.lastSecond = &sum
	m.minute = append(m.minute, sum)
	out := []emission{{second: &sum}}

	if len(m.minute) >= m.perMinute {
		res := compute.Compute(m.minute, m.rates, now)
		m.minute = m.minute[:0]
		m.minutesScored++
		m.lastScore = &res
		out = append(out, emission{score: &res})
		slog.Info("monitor: minute scored",
			"session", m.sessionID,
			"concentration_score", res.ConcentrationScore,
			"absence_ratio", res.AbsenceRatio,
		)
	}
	return out
}

func (m *Monitor) deliver(out []emission) {
	for _, e := range out {
		for i, sink := range m.sinks {
			var err error
			if e.second != nil {
				err = safeCall(func() error { return sink.OnSecondSummary(*e.second) })
			} else {
				err = safeCall(func() error { return sink.OnScoreResult(*e.score) })
			}
			if err != nil {
				slog.Warn("monitor: sink failed", "session", m.sessionID, "sink", i, "err", err)
			}
		}
	}
}

// safeCall runs fn, converting a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
