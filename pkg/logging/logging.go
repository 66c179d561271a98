// Package logging builds the slog.Logger shared by the agent and server
// binaries. Output is JSON on stdout; when File is set the same records are
// also written to a size-rotated file.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Defaults applied to zero rotation fields.
const (
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config is the `log:` section shared by the agent and server configs.
type Config struct {
	// Level is one of: debug | info | warn | error. Empty means info.
	Level string `yaml:"level"`

	// File is an optional path for a rotated copy of the log stream.
	File string `yaml:"file"`

	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
	MaxAgeDays int `yaml:"max_age_days"`
}

// New returns a JSON slog.Logger writing to stdout and, if configured, to a
// lumberjack-rotated file. The returned closer releases the file handle and
// is a no-op when no file is configured.
func New(cfg Config, stdout io.Writer) (*slog.Logger, io.Closer) {
	var w io.Writer = stdout
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: orDefault(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     orDefault(cfg.MaxAgeDays, DefaultMaxAgeDays),
			LocalTime:  true,
			Compress:   true,
		}
		w = io.MultiWriter(stdout, lj)
		closer = lj
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)})
	return slog.New(h), closer
}

// ParseLevel maps a config string to a slog.Level. Unknown values map to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s is a level accepted by ParseLevel.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
