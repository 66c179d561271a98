package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
agent:
  session_id: desk-42
  server_endpoint: "localhost:50051"
  tick_interval: 100ms
  buffer_size: 500
  source:
    type: mqtt
    max_sample_age: 2s
    mqtt:
      broker: "tcp://localhost:1883"
      topic: "focus/desk-42/frames"
      qos: 1
  calibration:
    required_samples: 30
  scoring:
    looking_away_rate: 2
    sleeping_rate: 3
log:
  level: debug
`
	cfg := loadFromString(t, yaml)

	a := cfg.Agent
	if a.SessionID != "desk-42" {
		t.Errorf("session_id: got %q", a.SessionID)
	}
	if a.TickInterval != 100*time.Millisecond {
		t.Errorf("tick_interval: got %v", a.TickInterval)
	}
	if a.BufferSize != 500 {
		t.Errorf("buffer_size: got %d", a.BufferSize)
	}
	if a.Source.Type != "mqtt" || a.Source.MQTT.Topic != "focus/desk-42/frames" || a.Source.MQTT.QoS != 1 {
		t.Errorf("source: got %+v", a.Source)
	}
	if a.Source.MaxSampleAge != 2*time.Second {
		t.Errorf("max_sample_age: got %v", a.Source.MaxSampleAge)
	}
	if a.Calibration.RequiredSamples != 30 {
		t.Errorf("required_samples: got %d", a.Calibration.RequiredSamples)
	}
	if a.Scoring.LookingAwayRate != 2 || a.Scoring.SleepingRate != 3 {
		t.Errorf("scoring: got %+v", a.Scoring)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level: got %q", cfg.Log.Level)
	}
}

func TestLoad_Defaults(t *testing.T) {
	yaml := `
agent:
  source:
    type: replay
    replay:
      path: frames.jsonl
`
	cfg := loadFromString(t, yaml)
	a := cfg.Agent

	if a.TickInterval != DefaultTickInterval {
		t.Errorf("default tick_interval: got %v, want %v", a.TickInterval, DefaultTickInterval)
	}
	if a.BufferSize != DefaultBufferSize {
		t.Errorf("default buffer_size: got %d, want %d", a.BufferSize, DefaultBufferSize)
	}
	if a.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("default http_addr: got %q", a.HTTPAddr)
	}
	if a.Source.Replay.FPS != DefaultReplayFPS {
		t.Errorf("default replay fps: got %v", a.Source.Replay.FPS)
	}
	if a.Source.MaxSampleAge != DefaultMaxSampleAge {
		t.Errorf("default max_sample_age: got %v", a.Source.MaxSampleAge)
	}
	if a.Calibration.RequiredSamples != DefaultRequiredSamples {
		t.Errorf("default required_samples: got %d", a.Calibration.RequiredSamples)
	}
	if a.Calibration.Preset != nil {
		t.Errorf("preset should default to nil, got %+v", a.Calibration.Preset)
	}
	if a.Scoring.LookingAwayRate != DefaultLookingAwayRate || a.Scoring.SleepingRate != DefaultSleepingRate {
		t.Errorf("default scoring: got %+v", a.Scoring)
	}
}

func TestLoad_Preset(t *testing.T) {
	yaml := `
agent:
  source:
    type: replay
    replay: {path: frames.jsonl}
  calibration:
    preset:
      eye_closedness_threshold: 0.6
      gaze_yaw_threshold: 12
      gaze_pitch_threshold: 8
`
	cfg := loadFromString(t, yaml)
	p := cfg.Agent.Calibration.Preset
	if p == nil {
		t.Fatal("preset: got nil")
	}
	if p.EyeClosedness != 0.6 || p.GazeYaw != 12 || p.GazePitch != 8 {
		t.Errorf("preset: got %+v", *p)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown source type", `
agent:
  source: {type: webcam}
`},
		{"mqtt without broker", `
agent:
  source: {type: mqtt}
`},
		{"mqtt qos out of range", `
agent:
  source:
    type: mqtt
    mqtt: {broker: "tcp://x:1883", qos: 3}
`},
		{"replay without path", `
agent:
  source: {type: replay}
`},
		{"negative rate", `
agent:
  source: {type: replay, replay: {path: f}}
  scoring: {looking_away_rate: -1}
`},
		{"zero required samples", `
agent:
  source: {type: replay, replay: {path: f}}
  calibration: {required_samples: 0}
`},
		{"zero preset threshold", `
agent:
  source: {type: replay, replay: {path: f}}
  calibration:
    preset: {eye_closedness_threshold: 0.5, gaze_yaw_threshold: 0, gaze_pitch_threshold: 3}
`},
		{"unknown auth mode", `
agent:
  source: {type: replay, replay: {path: f}}
  server_auth: {mode: magictoken}
`},
		{"unknown log level", `
agent:
  source: {type: replay, replay: {path: f}}
log: {level: chatty}
`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestAuthConfig_Key(t *testing.T) {
	t.Setenv("TEST_AGENT_KEY", "supersecret")
	a := AuthConfig{Mode: "apikey", KeyEnv: "TEST_AGENT_KEY"}
	if got := a.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q, want %q", got, "supersecret")
	}
	if got := (AuthConfig{}).Key(); got != "" {
		t.Errorf("Key() with no KeyEnv: got %q, want empty", got)
	}
}

func TestAuthConfig_EffectiveHeader(t *testing.T) {
	if got := (AuthConfig{}).EffectiveHeader(); got != DefaultAuthHeader {
		t.Errorf("default header: got %q", got)
	}
	if got := (AuthConfig{Header: "x-focus-key"}).EffectiveHeader(); got != "x-focus-key" {
		t.Errorf("custom header: got %q", got)
	}
}

func TestMQTTConfig_Password(t *testing.T) {
	t.Setenv("TEST_MQTT_PASSWORD", "hunter2")
	m := MQTTConfig{PasswordEnv: "TEST_MQTT_PASSWORD"}
	if got := m.Password(); got != "hunter2" {
		t.Errorf("Password(): got %q", got)
	}
}

func TestWatch_DeliversChangedScoring(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(rate string) {
		t.Helper()
		content := "agent:\n  source: {type: replay, replay: {path: f}}\n  scoring: {looking_away_rate: " + rate + "}\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	write("1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan float64, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, ScoringConfig{LookingAwayRate: 1, SleepingRate: DefaultSleepingRate}, func(c *Config) {
			got <- c.Agent.Scoring.LookingAwayRate
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	write("4")

	select {
	case rate := <-got:
		if rate != 4 {
			t.Errorf("reloaded rate: got %v, want 4", rate)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
