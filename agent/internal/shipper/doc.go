// Package shipper sends second and score reports to focusmonitor-server over
// gRPC (ReportService.SendReport, JSON codec from pkg/report).
//
// A Shipper is a monitor sink. OnSecondSummary and OnScoreResult convert the
// value to a report.Report and place it in an in-memory channel (default
// capacity 1000). When the buffer is full the oldest report is evicted.
//
// Run drains the buffer, reconnecting with truncated exponential backoff
// (1s→60s, ±25% jitter) after connection or send errors. Reports failing with
// Unauthenticated, PermissionDenied or InvalidArgument are discarded.
//
// Auth: mTLS via credentials.NewTLS, API key via gRPC metadata, or plaintext
// for local development.
package shipper
