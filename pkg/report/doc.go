// Package report defines the messages the focusmonitor agent ships to the
// focusmonitor server and the gRPC ReportService that carries them.
//
// There is no protobuf schema: messages are plain Go structs marshalled by a
// JSON codec (json-iterator) registered with grpc/encoding under the "json"
// content-subtype. Clients select it per call via grpc.CallContentSubtype;
// the server resolves it from the registered codec table, so importing this
// package is enough on both sides.
//
//	ReportService.SendReport(Report) → SendResponse
//
// A Report carries exactly one payload selected by Kind:
//   - "second": one per-second aggregation (SecondRecord)
//   - "score" : one per-minute score (ScoreRecord)
package report
