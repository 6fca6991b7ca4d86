package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientKeyCtx struct{}

// WithClientKey stores the rate-limit key of the calling client in ctx.
func WithClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyCtx{}, key)
}

// ClientKeyFromContext returns the key stored by WithClientKey, or "".
func ClientKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(clientKeyCtx{}).(string)
	return key
}

// ClientKey derives the rate-limit key from the first X-Forwarded-For entry,
// falling back to the remote address host.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware attaches ClientKey to every request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientKey(r.Context(), ClientKey(r))))
	})
}
