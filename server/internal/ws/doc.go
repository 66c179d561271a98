// Package ws implements the WebSocket hub of focusmonitor-server.
//
// The hub sends every client the current snapshot on connect, then again on
// each broadcast interval and whenever Notify is called (the receiver calls
// it after storing a minute score). Messages look like
//
//	{"event": "snapshot", "data": { /* GET /api/v1/snapshot schema */ }}
//
// Connecting with ?session=<id> limits the data to one session and its
// alerts. The endpoint is mounted at /ws/stream.
package ws
