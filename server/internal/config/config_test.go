package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Agent-only file; the server section is absent.
	p := writeConfig(t, `agent:
  server_endpoint: "localhost:50051"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.GRPCPort != DefaultGRPCPort || s.HTTPPort != DefaultHTTPPort {
		t.Errorf("ports: got %d/%d", s.GRPCPort, s.HTTPPort)
	}
	if s.Session.TTL != DefaultSessionTTL || s.Session.HistorySize != DefaultHistorySize {
		t.Errorf("session: got %+v", s.Session)
	}
	if s.BroadcastInterval != DefaultBroadcastInterval {
		t.Errorf("broadcast_interval: got %v", s.BroadcastInterval)
	}
	if len(s.Alerts.Rules) != len(DefaultRules) {
		t.Fatalf("rules: got %d, want default %d", len(s.Alerts.Rules), len(DefaultRules))
	}
	if s.Alerts.Rules[0].Condition != "concentration_score < 50" {
		t.Errorf("first default rule: %+v", s.Alerts.Rules[0])
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  grpc_port: 9090
  http_port: 9091
  auth:
    mode: apikey
    key_env: FM_SERVER_KEY
    header: X-Focus-Key
  session:
    ttl: 30m
    history_size: 10
  broadcast_interval: 1s
  alerts:
    rules:
      - name: drowsy
        condition: "sleeping_deduction > 0"
        severity: critical
        cooldown: 5m
    webhooks:
      - type: slack
        url_env: FM_SLACK_URL
log:
  level: debug
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.GRPCPort != 9090 || s.HTTPPort != 9091 {
		t.Errorf("ports: got %d/%d", s.GRPCPort, s.HTTPPort)
	}
	if s.Auth.EffectiveHeader() != "x-focus-key" {
		t.Errorf("header: got %q, want lowercased x-focus-key", s.Auth.EffectiveHeader())
	}
	if s.Session.TTL != 30*time.Minute || s.Session.HistorySize != 10 {
		t.Errorf("session: got %+v", s.Session)
	}
	if len(s.Alerts.Rules) != 1 || s.Alerts.Rules[0].Cooldown != 5*time.Minute {
		t.Errorf("rules: got %+v", s.Alerts.Rules)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level: got %q", cfg.Log.Level)
	}

	t.Setenv("FM_SLACK_URL", "https://hooks.example/abc")
	if u := s.Alerts.Webhooks[0].URL(); u != "https://hooks.example/abc" {
		t.Errorf("webhook URL: got %q", u)
	}
}

func TestAuth_Key(t *testing.T) {
	t.Setenv("FM_SERVER_KEY", "k")
	if got := (AuthConfig{KeyEnv: "FM_SERVER_KEY"}).Key(); got != "k" {
		t.Errorf("Key: got %q", got)
	}
	if got := (AuthConfig{}).Key(); got != "" {
		t.Errorf("Key without env: got %q", got)
	}
	if got := (AuthConfig{}).EffectiveHeader(); got != DefaultAuthHeader {
		t.Errorf("EffectiveHeader: got %q", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad grpc port", "server:\n  grpc_port: 70000\n", "grpc_port"},
		{"same ports", "server:\n  grpc_port: 8080\n  http_port: 8080\n", "must differ"},
		{"bad auth mode", "server:\n  auth:\n    mode: mtls\n", "auth.mode"},
		{"zero ttl", "server:\n  session:\n    ttl: 0s\n", "session.ttl"},
		{"zero history", "server:\n  session:\n    history_size: 0\n", "history_size"},
		{"unknown field", "server:\n  alerts:\n    rules:\n      - name: x\n        condition: \"drop_pct > 1\"\n", "unknown field"},
		{"bad operator", "server:\n  alerts:\n    rules:\n      - name: x\n        condition: \"absence_ratio != 1\"\n", "operator"},
		{"bad value", "server:\n  alerts:\n    rules:\n      - name: x\n        condition: \"absence_ratio > lots\"\n", "not a number"},
		{"missing rule name", "server:\n  alerts:\n    rules:\n      - condition: \"absence_ratio > 1\"\n", "name is required"},
		{"bad severity", "server:\n  alerts:\n    rules:\n      - name: x\n        condition: \"absence_ratio > 1\"\n        severity: loud\n", "severity"},
		{"bad webhook", "server:\n  alerts:\n    webhooks:\n      - type: pager\n", "webhooks[0]"},
		{"bad log level", "log:\n  level: chatty\n", "log.level"},
		{"bad yaml", "server: [\n", "parse yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
