package api

import (
	"github.com/focusmonitor/focusmonitor/pkg/report"
	"github.com/focusmonitor/focusmonitor/server/internal/alerts"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State            string  `json:"state"`
	SessionCount     int     `json:"session_count"`
	ScoredCount      int     `json:"scored_count"`
	MeanScore        float64 `json:"mean_score"`
	MeanAbsenceRatio float64 `json:"mean_absence_ratio"`
	FocusedCount     int     `json:"focused_count"`
	WaveringCount    int     `json:"wavering_count"`
	DistractedCount  int     `json:"distracted_count"`
	UnscoredCount    int     `json:"unscored_count"`
	AlertCount       int     `json:"alert_count"`
}

// SessionResponse is one entry in GET /api/v1/sessions or the body of
// GET /api/v1/sessions/{id}. History is only filled for the single-session
// view.
type SessionResponse struct {
	SessionID       string               `json:"session_id"`
	State           string               `json:"state"`
	LastScore       *report.ScoreRecord  `json:"last_score,omitempty"`
	LastSecond      *report.SecondRecord `json:"last_second,omitempty"`
	SecondsReceived int64                `json:"seconds_received"`
	ScoresReceived  int64                `json:"scores_received"`
	Diagnostics     []DiagnosticHint     `json:"diagnostics"`
	History         []report.ScoreRecord `json:"history,omitempty"`
	FirstSeen       string               `json:"first_seen"` // RFC3339
	LastSeen        string               `json:"last_seen"`  // RFC3339
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket broadcast.
type SnapshotResponse struct {
	Sessions    []SessionResponse `json:"sessions"`
	Alerts      []*alerts.Alert   `json:"alerts"`
	GeneratedAt string            `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
