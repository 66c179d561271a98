// Package metrics exposes the agent's pipeline output in the Prometheus text
// format. A Recorder is a monitor sink; it keeps running totals and the last
// minute's result and renders them on every scrape.
package metrics

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/focusmonitor/focusmonitor/agent/internal/compute"
	"github.com/focusmonitor/focusmonitor/agent/internal/monitor"
)

const namespace = "focusmonitor_"

// Recorder accumulates counters from second summaries and gauges from
// minute results.
type Recorder struct {
	sessionID string
	status    func() monitor.Status // optional

	mu          sync.Mutex
	seconds     float64
	lookingAway float64 // frames
	sleeping    float64 // frames
	noFace      float64 // frames
	noseStd     float64
	minutes     float64
	last        *compute.ScoreResult
}

// NewRecorder returns a Recorder labelling every series with sessionID.
// status, when non-nil, is polled on each scrape for mode and calibration
// progress.
func NewRecorder(sessionID string, status func() monitor.Status) *Recorder {
	return &Recorder{sessionID: sessionID, status: status}
}

// OnSecondSummary implements monitor.Sink.
func (r *Recorder) OnSecondSummary(s compute.SecondSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seconds++
	r.lookingAway += float64(s.LookingAway)
	r.sleeping += float64(s.Sleeping)
	r.noFace += float64(s.NoFace)
	r.noseStd = s.NoseStdAvg
	return nil
}

// OnScoreResult implements monitor.Sink.
func (r *Recorder) OnScoreResult(res compute.ScoreResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minutes++
	r.last = &res
	return nil
}

// Families returns the current metric families, sorted by name.
func (r *Recorder) Families() []*dto.MetricFamily {
	var st *monitor.Status
	if r.status != nil {
		s := r.status()
		st = &s
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fams := []*dto.MetricFamily{
		r.counter("frames_looking_away_total", "Samples classified as looking away.", r.lookingAway),
		r.counter("frames_no_face_total", "Samples without a detected face.", r.noFace),
		r.counter("frames_sleeping_total", "Samples classified as eyes closed.", r.sleeping),
		r.counter("minutes_scored_total", "Minutes reduced to a score.", r.minutes),
		r.gauge("nose_std_avg", "Latest weighted nose-position standard deviation.", r.noseStd),
		r.counter("seconds_total", "Seconds aggregated from samples.", r.seconds),
	}
	if r.last != nil {
		fams = append(fams,
			r.gauge("absence_ratio", "Absence ratio of the last scored minute, in percent.", float64(r.last.AbsenceRatio)),
			r.gauge("concentration_score", "Concentration score of the last scored minute.", float64(r.last.ConcentrationScore)),
			r.deductions(r.last.Deductions),
		)
	}
	if st != nil {
		recording := 0.0
		if st.Mode == monitor.Recording.String() {
			recording = 1
		}
		fams = append(fams,
			r.gauge("calibration_progress_ratio", "Fraction of calibration samples collected.",
				ratio(st.CalibrationProgress, st.CalibrationRequired)),
			r.gauge("recording", "1 when the monitor is recording, 0 while calibrating.", recording),
		)
	}
	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// Handler serves Families in the Prometheus text exposition format.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		format := expfmt.NewFormat(expfmt.TypeTextPlain)
		w.Header().Set("Content-Type", string(format))
		enc := expfmt.NewEncoder(w, format)
		for _, mf := range r.Families() {
			if err := enc.Encode(mf); err != nil {
				slog.Warn("metrics: encode failed", "family", mf.GetName(), "err", err)
				return
			}
		}
	})
}

func (r *Recorder) counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: ptr(namespace + name),
		Help: ptr(help),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{
			Label:   r.labels(),
			Counter: &dto.Counter{Value: ptr(v)},
		}},
	}
}

func (r *Recorder) gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: ptr(namespace + name),
		Help: ptr(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{
			Label: r.labels(),
			Gauge: &dto.Gauge{Value: ptr(v)},
		}},
	}
}

// deductions renders the last minute's breakdown as one gauge per rule.
func (r *Recorder) deductions(d compute.Deductions) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: ptr(namespace + "deduction_points"),
		Help: ptr("Points deducted in the last scored minute, by rule."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, rule := range []struct {
		name string
		v    float64
	}{
		{"absence", d.Absence},
		{"looking_away", d.LookingAway},
		{"sleeping", d.Sleeping},
		{"unstable", d.Unstable},
	} {
		labels := append(r.labels(), &dto.LabelPair{Name: ptr("rule"), Value: ptr(rule.name)})
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label: labels,
			Gauge: &dto.Gauge{Value: ptr(rule.v)},
		})
	}
	return mf
}

func (r *Recorder) labels() []*dto.LabelPair {
	return []*dto.LabelPair{{Name: ptr("session"), Value: ptr(r.sessionID)}}
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func ptr[T any](v T) *T { return &v }
