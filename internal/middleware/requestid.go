// Package middleware provides the HTTP middleware chain for the schooldesk
// API server: request IDs, logging, auth, CORS, rate limiting, metrics and
// tracing.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDKey is the context key for the request ID.
type requestIDKey struct{}

// RequestIDHeader carries the request ID on requests and responses. Clients
// such as the admin frontend can pass their own value to correlate a whole
// operation across calls.
const RequestIDHeader = "X-Request-ID"

// RequestID injects a request ID into the context and echoes it on the
// response. An incoming X-Request-ID header wins over a freshly generated
// UUID. The logging middleware attaches the ID to every request log line.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID from the context, or "" when the
// middleware did not run.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
