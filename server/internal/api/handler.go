package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/focusmonitor/focusmonitor/server/internal/alerts"
	"github.com/focusmonitor/focusmonitor/server/internal/store"
)

// Focus bands applied to concentration scores.
const (
	focusedScore  = 80
	waveringScore = 50
)

// AlertSource is the read side of the alert engine.
type AlertSource interface {
	Active() []*alerts.Alert
	FiringCount() int
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store  *store.Store
	alerts AlertSource
	mux    *http.ServeMux
}

// New creates a Handler reading sessions from st and alerts from al, which
// may be nil.
func New(st *store.Store, al AlertSource) http.Handler {
	h := &Handler{store: st, alerts: al, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/sessions", h.listSessions)
	h.mux.HandleFunc("/api/v1/sessions/", h.getSession) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: session counts per focus band and the
// mean of each session's latest score.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	resp := HealthResponse{SessionCount: len(entries)}
	if h.alerts != nil {
		resp.AlertCount = h.alerts.FiringCount()
	}

	var totalScore, totalAbsence float64
	for _, e := range entries {
		sc := e.LastScore()
		if sc == nil {
			resp.UnscoredCount++
			continue
		}
		resp.ScoredCount++
		totalScore += float64(sc.ConcentrationScore)
		totalAbsence += float64(sc.AbsenceRatio)
		switch focusState(float64(sc.ConcentrationScore)) {
		case "focused":
			resp.FocusedCount++
		case "wavering":
			resp.WaveringCount++
		default:
			resp.DistractedCount++
		}
	}

	if resp.ScoredCount == 0 {
		resp.State = "unknown"
		jsonResp(w, http.StatusOK, resp)
		return
	}
	resp.MeanScore = totalScore / float64(resp.ScoredCount)
	resp.MeanAbsenceRatio = totalAbsence / float64(resp.ScoredCount)
	resp.State = focusState(resp.MeanScore)
	jsonResp(w, http.StatusOK, resp)
}

// listSessions returns GET /api/v1/sessions: all live sessions.
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, sessionList(h.store))
}

// getSession returns GET /api/v1/sessions/{id}: one live session with its
// score history.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	if id == "" {
		h.listSessions(w, r)
		return
	}

	e, ok := h.store.Get(id)
	if !ok || !h.store.Live(e) {
		jsonErr(w, http.StatusNotFound, "session not found")
		return
	}

	resp := toSessionResponse(e)
	resp.History = e.Scores
	jsonResp(w, http.StatusOK, resp)
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, alertList(h.alerts))
}

// snapshot returns GET /api/v1/snapshot: every live session plus alerts.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store, h.alerts))
}

// BuildSnapshot assembles the snapshot payload. The WebSocket hub sends the
// same structure.
func BuildSnapshot(st *store.Store, al AlertSource) SnapshotResponse {
	return SnapshotResponse{
		Sessions:    sessionList(st),
		Alerts:      alertList(al),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// focusState maps a 0-100 concentration score to a band name.
func focusState(score float64) string {
	switch {
	case score >= focusedScore:
		return "focused"
	case score >= waveringScore:
		return "wavering"
	default:
		return "distracted"
	}
}

func sessionList(st *store.Store) []SessionResponse {
	entries := st.List()
	out := make([]SessionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toSessionResponse(e))
	}
	return out
}

func alertList(al AlertSource) []*alerts.Alert {
	if al == nil {
		return []*alerts.Alert{}
	}
	return al.Active()
}

// toSessionResponse maps a store.Entry to its JSON representation.
func toSessionResponse(e *store.Entry) SessionResponse {
	state := "unscored"
	sc := e.LastScore()
	if sc != nil {
		state = focusState(float64(sc.ConcentrationScore))
	}
	return SessionResponse{
		SessionID:       e.SessionID,
		State:           state,
		LastScore:       sc,
		LastSecond:      e.LastSecond,
		SecondsReceived: e.SecondsReceived,
		ScoresReceived:  e.ScoresReceived,
		Diagnostics:     computeDiagnostics(sc, e.LastSecond),
		FirstSeen:       e.FirstSeen.UTC().Format(time.RFC3339),
		LastSeen:        e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
