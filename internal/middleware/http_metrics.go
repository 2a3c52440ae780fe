package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// entityCollections are the tracked resource roots with /{id} sub-routes.
var entityCollections = map[string]bool{
	"classes":  true,
	"subjects": true,
	"teachers": true,
	"students": true,
	"users":    true,
	"scores":   true,
}

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. This maps paths like /classes/42 to /classes/{id}.
func normalizePath(path string) string {
	// Exact matches for static routes (no normalization needed)
	staticRoutes := map[string]bool{
		"/":                      true,
		"/classes":               true,
		"/subjects":              true,
		"/teachers":              true,
		"/students":              true,
		"/users":                 true,
		"/scores":                true,
		"/classes/history":       true,
		"/subjects/history":      true,
		"/teachers/history":      true,
		"/api/audit-logs":        true,
		"/api/audit-logs/export": true,
		"/scores/export":         true,
		"/auth/login":            true,
		"/auth/refresh":          true,
		"/auth/login-history":    true,
		"/health":                true,
		"/ready":                 true,
		"/metrics":               true,
	}

	if staticRoutes[path] {
		return path
	}

	// /{collection}/{id} and /{collection}/{id}/... for tracked entities
	parts := strings.Split(path, "/")
	if len(parts) >= 3 && entityCollections[parts[1]] && parts[2] != "" {
		// /scores/{id} etc.
		if len(parts) == 3 {
			return "/" + parts[1] + "/{id}"
		}
		// /classes/{id}/students, /students/{id}/scores
		if len(parts) == 4 {
			return "/" + parts[1] + "/{id}/" + parts[3]
		}
	}

	// Fallback: return as-is for unknown patterns
	// This ensures we don't accidentally break metrics for new routes
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics to avoid cardinality issues.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exclude health check endpoints from metrics
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			// Wrap response writer to capture status and size
			mrw := newMetricsResponseWriter(w)

			// Get request size from Content-Length header
			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			// Call the next handler
			next.ServeHTTP(mrw, r)

			// Calculate duration in seconds
			duration := time.Since(start).Seconds()

			// Normalize path to prevent cardinality explosion
			normalizedPath := normalizePath(r.URL.Path)

			// Record metrics
			metrics.ObserveHTTPRequest(
				r.Method,
				normalizedPath,
				strconv.Itoa(mrw.statusCode),
				duration,
				requestSize,
				mrw.size,
			)
		})
	}
}
