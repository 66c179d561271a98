// Package auth enforces the server's shared API key.
//
// New(mode, header, key) returns an APIKey. UnaryInterceptor guards the gRPC
// receiver and answers codes.Unauthenticated; Middleware guards the REST API
// and WebSocket hub and answers 401, accepting the key from the header or the
// api_key query parameter. When mode is not "apikey" or the key is empty,
// everything passes through, which suits local development.
package auth
