package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/focusmonitor/focusmonitor/pkg/logging"
)

// Default values for the server configuration.
const (
	DefaultGRPCPort          = 50051
	DefaultHTTPPort          = 8080
	DefaultSessionTTL        = 10 * time.Minute
	DefaultHistorySize       = 120
	DefaultBroadcastInterval = 5 * time.Second
	DefaultAuthHeader        = "x-api-key"
)

// DefaultRules are evaluated when the config names no alert rules.
var DefaultRules = []AlertRule{
	{Name: "low_concentration", Condition: "concentration_score < 50", Severity: "warning"},
	{Name: "frequent_absence", Condition: "absence_ratio > 30", Severity: "info"},
}

// Config is the server configuration. The `agent:` key in the same file is
// ignored.
type Config struct {
	Server ServerConfig   `yaml:"server"`
	Log    logging.Config `yaml:"log"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the report receiver listens on.
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port of the REST API and WebSocket hub.
	HTTPPort int `yaml:"http_port"`

	Auth AuthConfig `yaml:"auth"`

	Session SessionConfig `yaml:"session"`

	// BroadcastInterval is how often the hub pushes sessions to clients.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication for gRPC and REST.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv names the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key and HTTP header carrying the key.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns Header lowercased, or "x-api-key" when unset.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return strings.ToLower(a.Header)
	}
	return DefaultAuthHeader
}

// SessionConfig controls in-memory session retention.
type SessionConfig struct {
	// TTL is how long a session stays listed after its last report.
	TTL time.Duration `yaml:"ttl"`

	// HistorySize caps the minute scores kept per session.
	HistorySize int `yaml:"history_size"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule is one threshold condition on minute scores.
type AlertRule struct {
	// Name identifies the rule; with the session ID it is the dedup key.
	Name string `yaml:"name"`

	// Condition is "field op value", e.g. "concentration_score < 50".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires after an alert fires. Zero means 15m.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig is one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv names the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads the config file at path, applying defaults before unmarshalling
// and validating afterwards.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}
	if len(cfg.Server.Alerts.Rules) == 0 {
		cfg.Server.Alerts.Rules = append([]AlertRule(nil), DefaultRules...)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort:          DefaultGRPCPort,
			HTTPPort:          DefaultHTTPPort,
			BroadcastInterval: DefaultBroadcastInterval,
			Session: SessionConfig{
				TTL:         DefaultSessionTTL,
				HistorySize: DefaultHistorySize,
			},
		},
	}
}

func validate(cfg *Config) error {
	s := cfg.Server
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.GRPCPort == s.HTTPPort {
		return fmt.Errorf("server.grpc_port and server.http_port must differ")
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Session.TTL <= 0 {
		return fmt.Errorf("server.session.ttl must be positive")
	}
	if s.Session.HistorySize <= 0 {
		return fmt.Errorf("server.session.history_size must be positive")
	}
	if s.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name is required", i)
		}
		if err := ValidCondition(r.Condition); err != nil {
			return fmt.Errorf("server.alerts.rules[%d] %q: %w", i, r.Name, err)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("server.alerts.rules[%d] %q: severity %q unknown", i, r.Name, r.Severity)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: type %q unknown: want slack|teams|http", i, w.Type)
		}
	}
	if !logging.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q unknown", cfg.Log.Level)
	}
	return nil
}

// ConditionFields are the score fields an alert condition may reference.
var ConditionFields = []string{
	"concentration_score",
	"absence_ratio",
	"absence_deduction",
	"looking_away_deduction",
	"sleeping_deduction",
	"unstable_deduction",
}

// ValidCondition checks that cond has the form "field op number" with a known
// field and operator.
func ValidCondition(cond string) error {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return fmt.Errorf("condition %q: want \"field op value\"", cond)
	}
	known := false
	for _, f := range ConditionFields {
		if parts[0] == f {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("condition %q: unknown field %q", cond, parts[0])
	}
	switch parts[1] {
	case ">", ">=", "<", "<=", "==":
	default:
		return fmt.Errorf("condition %q: unknown operator %q", cond, parts[1])
	}
	if _, err := strconv.ParseFloat(parts[2], 64); err != nil {
		return fmt.Errorf("condition %q: value %q is not a number", cond, parts[2])
	}
	return nil
}
