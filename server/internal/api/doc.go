// Package api implements the HTTP REST API of focusmonitor-server.
//
// New(store, alerts) returns an http.Handler that serves:
//
//	GET /api/v1/health          session counts per focus band, mean score, firing alerts
//	GET /api/v1/sessions        all live sessions ([]SessionResponse)
//	GET /api/v1/sessions/{id}   one session with score history; 404 if unknown or stale
//	GET /api/v1/alerts          firing and recently resolved alerts
//	GET /api/v1/snapshot        all live sessions plus alerts and generated_at
//
// All endpoints answer application/json and return 405 for non-GET methods.
// Stale sessions are excluded everywhere.
package api
