// Package store keeps the server's in-memory view of monitored sessions.
//
// Each report from an agent updates its session entry: second reports replace
// LastSecond, score reports are appended to a bounded history. Sessions that
// stop reporting drop out of List after the TTL and are removed by Run.
// Nothing is persisted.
package store
