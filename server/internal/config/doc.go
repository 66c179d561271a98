// Package config loads the server configuration from the `server:` and
// `log:` sections of config.yaml (the `agent:` key is ignored).
//
//   - server.grpc_port           report receiver port (default 50051)
//   - server.http_port           REST API and WebSocket hub (default 8080)
//   - server.auth                apikey | none, key from key_env, header name
//   - server.session.ttl         how long a silent session stays listed (10m)
//   - server.session.history_size minute scores kept per session (120)
//   - server.broadcast_interval  WebSocket push period (5s)
//   - server.alerts              rules on minute scores and webhook targets;
//     DefaultRules apply when no rule is configured
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
