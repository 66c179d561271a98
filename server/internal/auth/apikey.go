package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// QueryParam carries the key for clients that cannot set headers, such as
// browser WebSocket connections.
const QueryParam = "api_key"

// APIKey checks a shared key on gRPC calls and HTTP requests.
type APIKey struct {
	header string
	key    string
	on     bool
}

// New returns an APIKey for the given auth mode. Checks are enabled only when
// mode is "apikey" and key is non-empty. header must be lowercase.
func New(mode, header, key string) APIKey {
	return APIKey{header: header, key: key, on: mode == "apikey" && key != ""}
}

// Enabled reports whether requests are checked.
func (a APIKey) Enabled() bool { return a.on }

func (a APIKey) valid(got string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(a.key)) == 1
}

// UnaryInterceptor rejects calls whose metadata lacks the key with
// codes.Unauthenticated.
func (a APIKey) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !a.on {
			return handler(ctx, req)
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		vals := md.Get(a.header)
		if len(vals) == 0 || !a.valid(vals[0]) {
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		return handler(ctx, req)
	}
}

// Middleware rejects HTTP requests without the key with 401. The key is read
// from the header, then from the api_key query parameter. Paths listed in
// open are served without a key.
func (a APIKey) Middleware(next http.Handler, open ...string) http.Handler {
	if !a.on {
		return next
	}
	public := make(map[string]bool, len(open))
	for _, p := range open {
		public[p] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if public[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get(a.header)
		if got == "" {
			got = r.URL.Query().Get(QueryParam)
		}
		if !a.valid(got) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
			return
		}
		next.ServeHTTP(w, r)
	})
}
