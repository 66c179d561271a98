package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/focusmonitor/focusmonitor/pkg/report"
	"github.com/focusmonitor/focusmonitor/server/internal/alerts"
	"github.com/focusmonitor/focusmonitor/server/internal/api"
	"github.com/focusmonitor/focusmonitor/server/internal/config"
	"github.com/focusmonitor/focusmonitor/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

var ts = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newStore(reports ...*report.Report) *store.Store {
	st := store.New(5*time.Minute, 10)
	for _, r := range reports {
		st.Put(r)
	}
	return st
}

func scored(session string, score, absence int, d report.Deductions) *report.Report {
	return &report.Report{
		SessionID: session,
		Kind:      report.KindScore,
		SentAt:    ts,
		Score: &report.ScoreRecord{
			Timestamp:          ts,
			ConcentrationScore: score,
			AbsenceRatio:       absence,
			Seconds:            60,
			Deductions:         d,
		},
	}
}

func second(session string, noFace int) *report.Report {
	return &report.Report{
		SessionID: session,
		Kind:      report.KindSecond,
		SentAt:    ts,
		Second:    &report.SecondRecord{Timestamp: ts, Samples: 5, NoFace: noFace},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

func hintKeys(hints []api.DiagnosticHint) map[string]string {
	out := make(map[string]string, len(hints))
	for _, h := range hints {
		out[h.Key] = h.Level
	}
	return out
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	h := api.New(newStore(), nil)
	rr := get(t, h, "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.State != "unknown" {
		t.Errorf("state: got %q, want unknown", resp.State)
	}
	if resp.SessionCount != 0 {
		t.Errorf("session_count: got %d, want 0", resp.SessionCount)
	}
}

func TestHealth_MixedSessions(t *testing.T) {
	h := api.New(newStore(
		scored("a", 90, 0, report.Deductions{}),
		scored("b", 70, 10, report.Deductions{Absence: 10}),
		scored("c", 40, 50, report.Deductions{Absence: 50}),
		second("d", 0),
	), nil)
	rr := get(t, h, "/api/v1/health")
	var resp api.HealthResponse
	decode(t, rr, &resp)

	if resp.SessionCount != 4 || resp.ScoredCount != 3 || resp.UnscoredCount != 1 {
		t.Errorf("counts: %+v", resp)
	}
	if resp.FocusedCount != 1 || resp.WaveringCount != 1 || resp.DistractedCount != 1 {
		t.Errorf("bands: %+v", resp)
	}
	if resp.MeanScore != 200.0/3 {
		t.Errorf("mean_score: got %v", resp.MeanScore)
	}
	if resp.MeanAbsenceRatio != 20 {
		t.Errorf("mean_absence_ratio: got %v, want 20", resp.MeanAbsenceRatio)
	}
	// mean 66.7 falls in the wavering band
	if resp.State != "wavering" {
		t.Errorf("state: got %q, want wavering", resp.State)
	}
}

func TestHealth_AlertCount(t *testing.T) {
	eng := alerts.New(config.AlertsConfig{Rules: config.DefaultRules})
	eng.Evaluate("a", scored("a", 30, 0, report.Deductions{}).Score)

	h := api.New(newStore(scored("a", 30, 0, report.Deductions{})), eng)
	var resp api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &resp)
	if resp.AlertCount != 1 {
		t.Errorf("alert_count: got %d, want 1", resp.AlertCount)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	h := api.New(newStore(), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/health", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/sessions -------------------------------------------------------

func TestListSessions_Empty(t *testing.T) {
	h := api.New(newStore(), nil)
	rr := get(t, h, "/api/v1/sessions")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp []api.SessionResponse
	decode(t, rr, &resp)
	if len(resp) != 0 {
		t.Errorf("sessions: got %d, want 0", len(resp))
	}
}

func TestListSessions_Sorted(t *testing.T) {
	h := api.New(newStore(
		scored("zeta", 95, 0, report.Deductions{}),
		second("alpha", 0),
	), nil)
	var resp []api.SessionResponse
	decode(t, get(t, h, "/api/v1/sessions"), &resp)

	if len(resp) != 2 {
		t.Fatalf("sessions: got %d, want 2", len(resp))
	}
	if resp[0].SessionID != "alpha" || resp[1].SessionID != "zeta" {
		t.Errorf("order: %s, %s", resp[0].SessionID, resp[1].SessionID)
	}
	if resp[0].State != "unscored" || resp[1].State != "focused" {
		t.Errorf("states: %s, %s", resp[0].State, resp[1].State)
	}
	if resp[1].History != nil {
		t.Error("list view must not include history")
	}
	if resp[0].LastSeen == "" {
		t.Error("last_seen missing")
	}
}

func TestListSessions_MethodNotAllowed(t *testing.T) {
	h := api.New(newStore(), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/sessions/{id} --------------------------------------------------

func TestGetSession_FoundWithHistory(t *testing.T) {
	h := api.New(newStore(
		scored("desk-1", 88, 0, report.Deductions{}),
		scored("desk-1", 72, 0, report.Deductions{LookingAway: 28}),
	), nil)
	rr := get(t, h, "/api/v1/sessions/desk-1")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	var resp api.SessionResponse
	decode(t, rr, &resp)
	if len(resp.History) != 2 {
		t.Fatalf("history: got %d, want 2", len(resp.History))
	}
	if resp.History[0].ConcentrationScore != 88 || resp.LastScore.ConcentrationScore != 72 {
		t.Errorf("history order wrong: %+v", resp.History)
	}
	if resp.ScoresReceived != 2 {
		t.Errorf("scores_received: got %d", resp.ScoresReceived)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	h := api.New(newStore(), nil)
	if rr := get(t, h, "/api/v1/sessions/nobody"); rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestGetSession_Stale(t *testing.T) {
	st := store.New(time.Millisecond, 10)
	st.Put(second("old", 0))
	time.Sleep(5 * time.Millisecond)

	h := api.New(st, nil)
	if rr := get(t, h, "/api/v1/sessions/old"); rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestGetSession_BarePathLists(t *testing.T) {
	h := api.New(newStore(second("a", 0)), nil)
	var resp []api.SessionResponse
	decode(t, get(t, h, "/api/v1/sessions/"), &resp)
	if len(resp) != 1 {
		t.Errorf("sessions: got %d, want 1", len(resp))
	}
}

// --- diagnostics ------------------------------------------------------------

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name  string
		r     []*report.Report
		want  map[string]string
		first string
	}{
		{
			name:  "no score yet",
			r:     []*report.Report{second("s", 0)},
			want:  map[string]string{"no_score_yet": "info"},
			first: "no_score_yet",
		},
		{
			name:  "clean minute",
			r:     []*report.Report{scored("s", 100, 0, report.Deductions{})},
			want:  map[string]string{"focused": "ok"},
			first: "focused",
		},
		{
			name: "distracted minute",
			r: []*report.Report{scored("s", 35, 40, report.Deductions{
				Absence: 40, LookingAway: 12, Sleeping: 10, Unstable: 3,
			})},
			want: map[string]string{
				"low_concentration": "critical",
				"absent":            "warning",
				"drowsy":            "warning",
				"looking_away":      "warning",
				"restless":          "info",
			},
			first: "low_concentration",
		},
		{
			name:  "out of frame",
			r:     []*report.Report{scored("s", 97, 3, report.Deductions{Absence: 3}), second("s", 5)},
			want:  map[string]string{"out_of_frame": "info", "absent": "info"},
			first: "out_of_frame",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := api.New(newStore(tc.r...), nil)
			var resp api.SessionResponse
			decode(t, get(t, h, "/api/v1/sessions/s"), &resp)

			got := hintKeys(resp.Diagnostics)
			if len(got) != len(tc.want) {
				t.Errorf("hints: got %v, want %v", got, tc.want)
			}
			for k, level := range tc.want {
				if got[k] != level {
					t.Errorf("hint %s: got level %q, want %q", k, got[k], level)
				}
			}
			if resp.Diagnostics[0].Key != tc.first {
				t.Errorf("first hint: got %s, want %s", resp.Diagnostics[0].Key, tc.first)
			}
		})
	}
}

// --- /api/v1/alerts and /api/v1/snapshot ------------------------------------

func TestAlerts_NilSource(t *testing.T) {
	h := api.New(newStore(), nil)
	rr := get(t, h, "/api/v1/alerts")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var resp []interface{}
	decode(t, rr, &resp)
	if len(resp) != 0 {
		t.Errorf("alerts: got %d, want 0", len(resp))
	}
}

func TestAlerts_FromEngine(t *testing.T) {
	eng := alerts.New(config.AlertsConfig{Rules: config.DefaultRules})
	eng.Evaluate("desk-1", scored("desk-1", 20, 45, report.Deductions{}).Score)

	h := api.New(newStore(), eng)
	var resp []alerts.Alert
	decode(t, get(t, h, "/api/v1/alerts"), &resp)
	if len(resp) != 2 {
		t.Fatalf("alerts: got %d, want 2", len(resp))
	}
	for _, a := range resp {
		if a.SessionID != "desk-1" || a.State != alerts.StateFiring {
			t.Errorf("alert: %+v", a)
		}
	}
}

func TestSnapshot(t *testing.T) {
	h := api.New(newStore(scored("a", 80, 0, report.Deductions{}), second("b", 0)), nil)
	rr := get(t, h, "/api/v1/snapshot")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var resp api.SnapshotResponse
	decode(t, rr, &resp)

	if len(resp.Sessions) != 2 {
		t.Errorf("sessions: got %d, want 2", len(resp.Sessions))
	}
	if _, err := time.Parse(time.RFC3339, resp.GeneratedAt); err != nil {
		t.Errorf("generated_at: %v", err)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type: %q", ct)
	}
}
