package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/focusmonitor/focusmonitor/agent/internal/config"
)

// maxLineBytes bounds a single JSON-lines record.
const maxLineBytes = 64 * 1024

// replaySource feeds a recorded JSON-lines file through the slot at a fixed
// frame rate. Recorded timestamps are replaced with the replay time.
type replaySource struct {
	cfg  config.ReplayConfig
	slot *Slot
	now  func() time.Time
}

func newReplaySource(cfg config.ReplayConfig, slot *Slot) *replaySource {
	return &replaySource{cfg: cfg, slot: slot, now: time.Now}
}

func (s *replaySource) Current() Sample { return s.slot.Get() }

// Run replays the file until EOF (or forever when Loop is set) and then
// waits for ctx to be cancelled. Once replay stops the slot ages out and the
// monitor sees no face.
func (s *replaySource) Run(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.FPS), 1)

	for pass := 1; ; pass++ {
		n, err := s.replayOnce(ctx, limiter)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		slog.Info("source: replay finished", "path", s.cfg.Path, "pass", pass, "frames", n)
		if !s.cfg.Loop || n == 0 {
			break
		}
	}

	<-ctx.Done()
	return nil
}

// replayOnce streams the file once and returns the number of frames emitted.
func (s *replaySource) replayOnce(ctx context.Context, limiter *rate.Limiter) (int, error) {
	f, err := os.Open(s.cfg.Path)
	if err != nil {
		return 0, fmt.Errorf("source: open replay file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	frames, line := 0, 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			// Context cancelled mid-replay.
			return frames, nil
		}

		now := s.now()
		smp, err := DecodeFrame(raw, now)
		if err != nil {
			slog.Warn("source: bad replay line", "path", s.cfg.Path, "line", line, "err", err)
			smp = NoFace(now)
		}
		smp.Timestamp = now
		s.slot.Put(smp)
		frames++
	}
	if err := sc.Err(); err != nil {
		return frames, fmt.Errorf("source: read replay file: %w", err)
	}
	return frames, nil
}
