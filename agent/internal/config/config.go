package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/focusmonitor/focusmonitor/pkg/logging"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultTickInterval    = 200 * time.Millisecond
	DefaultBufferSize      = 1000
	DefaultHTTPAddr        = ":9102"
	DefaultMaxSampleAge    = time.Second
	DefaultRequiredSamples = 50
	DefaultLookingAwayRate = 1.0
	DefaultSleepingRate    = 5.0
	DefaultReplayFPS       = 5.0
	DefaultMQTTTopic       = "focusmonitor/+/frames"
	DefaultAuthHeader      = "x-api-key"
)

// Config is the top-level agent configuration.
type Config struct {
	Agent AgentConfig    `yaml:"agent"`
	Log   logging.Config `yaml:"log"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// SessionID identifies this monitoring session on the server.
	// A random UUID is used when empty.
	SessionID string `yaml:"session_id"`

	// ServerEndpoint is the gRPC address of focusmonitor-server (host:port).
	// Leave empty to run without shipping.
	ServerEndpoint string `yaml:"server_endpoint"`

	// TickInterval is the period of the sampling tick. Five ticks form one second.
	TickInterval time.Duration `yaml:"tick_interval"`

	// BufferSize is the maximum number of reports held in memory when
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// HTTPAddr serves /metrics and the control API. Empty disables it.
	HTTPAddr string `yaml:"http_addr"`

	Source      SourceConfig      `yaml:"source"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Scoring     ScoringConfig     `yaml:"scoring"`

	// ServerAuth configures how the agent authenticates to focusmonitor-server.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// SourceConfig selects and configures the sample producer.
type SourceConfig struct {
	// Type is one of: mqtt | replay.
	Type string `yaml:"type"`

	// MaxSampleAge is how long the latest sample stays valid. Older samples
	// are read as "no face".
	MaxSampleAge time.Duration `yaml:"max_sample_age"`

	MQTT   MQTTConfig   `yaml:"mqtt"`
	Replay ReplayConfig `yaml:"replay"`
}

// MQTTConfig configures the MQTT frame subscriber.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Topic       string `yaml:"topic"`
	QoS         byte   `yaml:"qos"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// ReplayConfig configures the recorded-frames reader.
type ReplayConfig struct {
	// Path is a JSON-lines file, one frame per line.
	Path string `yaml:"path"`

	// FPS is the replay rate in frames per second.
	FPS float64 `yaml:"fps"`

	// Loop restarts from the first line at EOF.
	Loop bool `yaml:"loop"`
}

// CalibrationConfig controls threshold calibration.
type CalibrationConfig struct {
	// RequiredSamples is the number of face-present samples collected
	// before thresholds are computed.
	RequiredSamples int `yaml:"required_samples"`

	// Preset skips the initial calibration when set.
	Preset *ThresholdsConfig `yaml:"preset"`
}

// ThresholdsConfig is a stored set of calibrated thresholds.
type ThresholdsConfig struct {
	EyeClosedness float64 `yaml:"eye_closedness_threshold"`
	GazeYaw       float64 `yaml:"gaze_yaw_threshold"`
	GazePitch     float64 `yaml:"gaze_pitch_threshold"`
}

// ScoringConfig holds the configurable deduction rates in points per second.
type ScoringConfig struct {
	LookingAwayRate float64 `yaml:"looking_away_rate"`
	SleepingRate    float64 `yaml:"sleeping_rate"`
}

// AuthConfig specifies how the agent authenticates to the server.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the gRPC metadata key carrying the API key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns Header, or "x-api-key" when unset.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAuthHeader
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			TickInterval: DefaultTickInterval,
			BufferSize:   DefaultBufferSize,
			HTTPAddr:     DefaultHTTPAddr,
			Source: SourceConfig{
				MaxSampleAge: DefaultMaxSampleAge,
				MQTT:         MQTTConfig{Topic: DefaultMQTTTopic},
				Replay:       ReplayConfig{FPS: DefaultReplayFPS},
			},
			Calibration: CalibrationConfig{
				RequiredSamples: DefaultRequiredSamples,
			},
			Scoring: ScoringConfig{
				LookingAwayRate: DefaultLookingAwayRate,
				SleepingRate:    DefaultSleepingRate,
			},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.TickInterval <= 0 {
		return fmt.Errorf("agent.tick_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if a.Source.MaxSampleAge < 0 {
		return fmt.Errorf("agent.source.max_sample_age must not be negative")
	}
	switch a.Source.Type {
	case "mqtt":
		if a.Source.MQTT.Broker == "" {
			return fmt.Errorf("agent.source.mqtt.broker is required")
		}
		if a.Source.MQTT.QoS > 2 {
			return fmt.Errorf("agent.source.mqtt.qos %d out of range [0, 2]", a.Source.MQTT.QoS)
		}
	case "replay":
		if a.Source.Replay.Path == "" {
			return fmt.Errorf("agent.source.replay.path is required")
		}
		if a.Source.Replay.FPS <= 0 {
			return fmt.Errorf("agent.source.replay.fps must be positive")
		}
	default:
		return fmt.Errorf("agent.source.type %q unknown: want mqtt|replay", a.Source.Type)
	}
	if a.Calibration.RequiredSamples <= 0 {
		return fmt.Errorf("agent.calibration.required_samples must be positive")
	}
	if p := a.Calibration.Preset; p != nil {
		if p.EyeClosedness <= 0 || p.GazeYaw <= 0 || p.GazePitch <= 0 {
			return fmt.Errorf("agent.calibration.preset thresholds must be positive")
		}
	}
	if a.Scoring.LookingAwayRate < 0 || a.Scoring.SleepingRate < 0 {
		return fmt.Errorf("agent.scoring rates must not be negative")
	}
	switch a.ServerAuth.Mode {
	case "mtls", "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth.mode %q unknown", a.ServerAuth.Mode)
	}
	if !logging.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q unknown", cfg.Log.Level)
	}
	return nil
}
