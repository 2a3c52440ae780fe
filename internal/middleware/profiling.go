package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// ProfilingConfig configures the pprof middleware. main only wraps the mux
// with it when debug mode is on outside production; the Environment field is
// a second guard against misconfiguration.
type ProfilingConfig struct {
	Enabled     bool
	Environment string
}

// Profiling exposes the net/http/pprof endpoints under /debug/pprof/*.
// Disabled configs pass requests straight through. Enabling it with a
// production environment is refused and logged, since the profiles leak
// memory contents and runtime internals. Useful profiles while chasing a
// slow history query: /debug/pprof/profile?seconds=N for CPU,
// /debug/pprof/heap and /debug/pprof/goroutine for memory and stuck
// handlers.
func Profiling(config ProfilingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}

		if config.Environment == "production" || config.Environment == "prod" {
			slog.Error("refusing to enable profiling in production",
				"environment", config.Environment,
			)
			return next
		}

		slog.Warn("profiling endpoints enabled",
			"environment", config.Environment,
			"endpoints", "/debug/pprof/*",
		)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/debug/pprof") {
				next.ServeHTTP(w, r)
				return
			}

			switch r.URL.Path {
			case "/debug/pprof/cmdline":
				pprof.Cmdline(w, r)
			case "/debug/pprof/profile":
				pprof.Profile(w, r)
			case "/debug/pprof/symbol":
				pprof.Symbol(w, r)
			case "/debug/pprof/trace":
				pprof.Trace(w, r)
			default:
				// Index also serves the named runtime profiles
				// (heap, goroutine, block, mutex, allocs).
				pprof.Index(w, r)
			}
		})
	}
}

// ProfilingStatus returns a handler reporting whether profiling is on and
// which endpoints it would serve.
func ProfilingStatus(config ProfilingConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		status := "disabled"
		if config.Enabled {
			status = "enabled"
		}

		response := fmt.Sprintf(`{
  "profiling_enabled": %t,
  "environment": %q,
  "status": %q,
  "endpoints": [
    "/debug/pprof/",
    "/debug/pprof/profile",
    "/debug/pprof/heap",
    "/debug/pprof/goroutine",
    "/debug/pprof/block",
    "/debug/pprof/mutex",
    "/debug/pprof/threadcreate",
    "/debug/pprof/allocs",
    "/debug/pprof/cmdline",
    "/debug/pprof/symbol",
    "/debug/pprof/trace"
  ]
}`, config.Enabled, config.Environment, status)

		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(response)); err != nil {
			slog.Error("failed to write profiling status response", "error", err)
		}
	}
}
