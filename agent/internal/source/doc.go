// Package source produces Samples for the monitor.
//
// Every producer runs in its own goroutine (Source.Run) and writes the newest
// measurement into a Slot, a single-value mailbox guarded by a mutex. The
// monitor tick reads the slot with Source.Current and never blocks on a
// producer. The handoff is lossy: a slow tick skips intermediate frames and a
// fast tick may read the same frame twice.
//
// Producers:
//   - mqtt: subscribes to a topic on which a face tracker publishes frames
//   - replay: re-plays a JSON-lines recording at a fixed frame rate
//
// Frames are JSON (see Frame). A tracker may send either the derived
// measurements directly or the raw blendshape scores, which DecodeFrame
// converts. A frame that cannot be decoded is recorded as a no-face sample.
package source
