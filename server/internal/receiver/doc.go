// Package receiver implements report.ReportServiceServer, the gRPC endpoint
// that accepts second and score reports from focusmonitor agents.
//
// Every report is checked against its validate struct tags with
// go-playground/validator; failures answer codes.InvalidArgument and are not
// stored. Accepted reports go to the session store, and score reports are
// also passed to the alert engine and any registered Notifier.
package receiver
