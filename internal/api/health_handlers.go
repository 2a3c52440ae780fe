package api

import (
	"context"
	"net/http"
	"time"

	"github.com/openschoolhq/schooldesk/internal/health"
)

// readinessTimeout bounds how long a single readiness probe may take.
const readinessTimeout = 5 * time.Second

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	checkers map[string]health.Checker
}

// NewHealthHandlers creates the health handlers. checkers maps dependency
// names to their probes; nil entries are skipped.
func NewHealthHandlers(checkers map[string]health.Checker) *HealthHandlers {
	return &HealthHandlers{checkers: checkers}
}

// Register wires the health routes.
func (h *HealthHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Live)
	mux.HandleFunc("GET /ready", h.Ready)
}

// Live handles GET /health. The process is alive if it can answer at all.
func (h *HealthHandlers) Live(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r.Context(), http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready, probing every registered dependency. Any failed
// probe makes the whole response a 503 with per-dependency statuses.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	statuses := make(map[string]string, len(h.checkers))
	healthy := true
	for name, checker := range h.checkers {
		if checker == nil {
			continue
		}
		if err := checker.HealthCheck(ctx); err != nil {
			statuses[name] = err.Error()
			healthy = false
			continue
		}
		statuses[name] = "ok"
	}

	status := http.StatusOK
	overall := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	WriteJSON(w, r.Context(), status, map[string]any{
		"status":       overall,
		"dependencies": statuses,
	})
}
