// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent, Log}: full config tree parsed from YAML
//   - AgentConfig: session_id, server_endpoint, tick_interval, buffer_size,
//     http_addr, source, calibration, scoring, server_auth
//   - SourceConfig: type (mqtt|replay), max_sample_age, mqtt{}, replay{}
//   - CalibrationConfig: required_samples, optional preset thresholds
//   - ScoringConfig: looking_away_rate, sleeping_rate (points per second)
//
// Load(path) reads the YAML file, applies defaults (200ms tick, 50 calibration
// samples, rates 1 and 5), then validates required fields and enums.
//
// Watch(ctx, path, initial, onChange) uses fsnotify to detect file changes and
// calls onChange when the scoring section differs from the last one seen. The
// agent applies new rates on reload; other fields take effect on restart.
package config
