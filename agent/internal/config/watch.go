package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path whenever it changes and calls onChange with the new
// Config if its scoring section differs from the last one delivered.
// It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// rename-based saves (vim, VS Code) keep being observed without re-adding.
// A reload that fails validation is logged and skipped.
func Watch(ctx context.Context, path string, initial ScoringConfig, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", target)
	last := initial

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(target)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", target, "err", err)
				continue
			}
			if cfg.Agent.Scoring == last {
				slog.Debug("config: reloaded, scoring unchanged", "path", target)
				continue
			}

			slog.Info("config: scoring rates changed",
				"looking_away_rate", cfg.Agent.Scoring.LookingAwayRate,
				"sleeping_rate", cfg.Agent.Scoring.SleepingRate)
			last = cfg.Agent.Scoring
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
