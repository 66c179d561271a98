// Package api serves the agent's local control endpoints.
//
//	GET  /api/v1/status     monitor mode, calibration progress, last results
//	POST /api/v1/calibrate  restart calibration (202 Accepted)
//	GET  /metrics           Prometheus text exposition, when a handler is given
package api

import (
	"encoding/json"
	"net/http"

	"github.com/focusmonitor/focusmonitor/agent/internal/monitor"
)

// Controller is the part of monitor.Monitor the API drives.
type Controller interface {
	Status() monitor.Status
	Recalibrate()
}

// Handler routes the agent's HTTP endpoints.
type Handler struct {
	ctl Controller
	mux *http.ServeMux
}

// New returns the agent HTTP handler. metrics may be nil.
func New(ctl Controller, metrics http.Handler) http.Handler {
	h := &Handler{ctl: ctl, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/status", h.status)
	h.mux.HandleFunc("/api/v1/calibrate", h.calibrate)
	if metrics != nil {
		h.mux.Handle("/metrics", metrics)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.ctl.Status())
}

func (h *Handler) calibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.ctl.Recalibrate()
	jsonResp(w, http.StatusAccepted, h.ctl.Status())
}

type errorResponse struct {
	Error string `json:"error"`
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
