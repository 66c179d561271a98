package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/focusmonitor/focusmonitor/agent/internal/config"
)

// Sample is one frame-level attention measurement. When FaceDetected is
// false the remaining measurement fields carry no meaning.
type Sample struct {
	Timestamp     time.Time
	FaceDetected  bool
	EyeClosedness float64 // 0 = open, 1 = closed
	GazeYawDeg    float64
	GazePitchDeg  float64
	NoseX         float64
	NoseY         float64
}

// NoFace returns a sample recording that no face was visible at ts.
func NoFace(ts time.Time) Sample {
	return Sample{Timestamp: ts}
}

// Source is implemented by every sample producer.
type Source interface {
	// Run produces samples until ctx is cancelled.
	Run(ctx context.Context) error

	// Current returns the most recent sample, or a no-face sample if there
	// is none or it is older than the configured maximum age. Never blocks.
	Current() Sample
}

// New returns the Source selected by cfg.Type.
func New(cfg config.SourceConfig) (Source, error) {
	slot := NewSlot(cfg.MaxSampleAge)
	switch cfg.Type {
	case "mqtt":
		return newMQTTSource(cfg.MQTT, slot), nil
	case "replay":
		return newReplaySource(cfg.Replay, slot), nil
	default:
		return nil, fmt.Errorf("source: unsupported type %q", cfg.Type)
	}
}

// Slot holds the latest sample written by a producer.
type Slot struct {
	mu       sync.Mutex
	latest   Sample
	storedAt time.Time
	has      bool
	maxAge   time.Duration    // 0 disables the staleness check
	now      func() time.Time // injectable for deterministic tests
}

// NewSlot returns an empty slot whose samples expire after maxAge.
func NewSlot(maxAge time.Duration) *Slot {
	return &Slot{maxAge: maxAge, now: time.Now}
}

// Put replaces the stored sample.
func (s *Slot) Put(smp Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = smp
	s.storedAt = s.now()
	s.has = true
}

// Get returns a copy of the stored sample. An empty slot, or one whose
// sample was stored more than maxAge ago, reads as no face.
func (s *Slot) Get() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !s.has {
		return NoFace(now)
	}
	if s.maxAge > 0 && now.Sub(s.storedAt) > s.maxAge {
		return NoFace(now)
	}
	return s.latest
}
