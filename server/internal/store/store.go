package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/focusmonitor/focusmonitor/pkg/report"
)

// Entry is the server's view of one monitored session.
type Entry struct {
	SessionID string

	// LastSecond is the most recent second summary, nil until one arrives.
	LastSecond *report.SecondRecord

	// Scores holds the most recent minute scores, oldest first.
	Scores []report.ScoreRecord

	SecondsReceived int64
	ScoresReceived  int64

	FirstSeen time.Time
	UpdatedAt time.Time
}

// LastScore returns the newest minute score, or nil.
func (e *Entry) LastScore() *report.ScoreRecord {
	if len(e.Scores) == 0 {
		return nil
	}
	s := e.Scores[len(e.Scores)-1]
	return &s
}

// clone returns a copy that shares nothing with e.
func (e *Entry) clone() *Entry {
	cp := *e
	if e.LastSecond != nil {
		sec := *e.LastSecond
		cp.LastSecond = &sec
	}
	cp.Scores = append([]report.ScoreRecord(nil), e.Scores...)
	return &cp
}

// Store is a thread-safe in-memory session store keyed by session ID.
// Run evicts sessions that have not reported within the TTL.
type Store struct {
	mu      sync.RWMutex
	data    map[string]*Entry
	ttl     time.Duration
	history int
	now     func() time.Time // injectable for deterministic tests
}

// New creates a Store keeping history minute scores per session.
func New(ttl time.Duration, history int) *Store {
	if history <= 0 {
		history = 1
	}
	return &Store{
		data:    make(map[string]*Entry),
		ttl:     ttl,
		history: history,
		now:     time.Now,
	}
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put folds r into its session and returns a copy of the updated entry.
func (s *Store) Put(r *report.Report) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.data[r.SessionID]
	if !ok {
		e = &Entry{SessionID: r.SessionID, FirstSeen: now}
		s.data[r.SessionID] = e
	}
	e.UpdatedAt = now

	switch r.Kind {
	case report.KindSecond:
		if r.Second != nil {
			sec := *r.Second
			e.LastSecond = &sec
			e.SecondsReceived++
		}
	case report.KindScore:
		if r.Score != nil {
			e.Scores = append(e.Scores, *r.Score)
			if over := len(e.Scores) - s.history; over > 0 {
				e.Scores = append(e.Scores[:0], e.Scores[over:]...)
			}
			e.ScoresReceived++
		}
	}
	return e.clone()
}

// Get returns a copy of the session entry. The entry may be stale.
func (s *Store) Get(sessionID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[sessionID]
	if !ok {
		return nil, false
	}
	return e.clone(), true
}

// Live reports whether e was updated within the TTL.
func (s *Store) Live(e *Entry) bool {
	return e.UpdatedAt.After(s.now().Add(-s.ttl))
}

// List returns copies of all live sessions sorted by session ID.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Count returns the number of sessions held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes sessions not updated since now minus TTL and returns how
// many were removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run evicts stale sessions every half TTL (at least once a second) until
// ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale sessions", "count", n)
			}
		}
	}
}
