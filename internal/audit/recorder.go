package audit

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/openschoolhq/schooldesk/internal/middleware"
)

// ErrNilRepository is returned when a nil repository is passed to a recorder.
var ErrNilRepository = errors.New("audit repository cannot be nil")

// Recorder is the port every entity service records mutations through.
// It is injected explicitly rather than hooked into the store so the
// dependency stays visible and testable.
type Recorder interface {
	Record(ctx context.Context, entry Entry) (*ChangeRecord, error)
}

// StoreRecorder writes entries straight to a Repository, stamping actor and
// request provenance from the context when the entry does not carry them.
type StoreRecorder struct {
	repo Repository
}

// NewStoreRecorder creates a recorder backed by repo.
func NewStoreRecorder(repo Repository) (*StoreRecorder, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	return &StoreRecorder{repo: repo}, nil
}

// Record validates and appends one change record. For UPDATE entries the
// caller must have captured BeforeState strictly before applying the
// mutation and AfterState strictly after.
func (r *StoreRecorder) Record(ctx context.Context, entry Entry) (*ChangeRecord, error) {
	if entry.ActorID == nil {
		if actor := middleware.GetActorID(ctx); actor != "" {
			entry.ActorID = &actor
		}
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return r.repo.Append(ctx, entry)
}

// BestEffortRecorder wraps a Recorder with the audit write policy of the
// primary mutation path: failures are logged and swallowed so that a broken
// audit store never turns a successful business operation into an error.
// A history gap is the accepted cost.
type BestEffortRecorder struct {
	inner  Recorder
	logger *slog.Logger
}

// NewBestEffortRecorder wraps inner. A nil logger falls back to slog.Default.
func NewBestEffortRecorder(inner Recorder, logger *slog.Logger) *BestEffortRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &BestEffortRecorder{inner: inner, logger: logger}
}

// Record attempts the underlying write and always reports success to the
// caller. The returned record is nil when the write failed.
func (r *BestEffortRecorder) Record(ctx context.Context, entry Entry) (*ChangeRecord, error) {
	rec, err := r.inner.Record(ctx, entry)
	if err != nil {
		r.logger.ErrorContext(ctx, "audit write failed",
			"entity", entry.EntityName,
			"entity_id", entry.EntityID,
			"action", string(entry.Action),
			"error", err)
		return nil, nil
	}
	return rec, nil
}

// Origin carries the request provenance stamped on every change record.
type Origin struct {
	IP    string
	Agent string
}

// OriginFromRequest extracts client IP and user agent from an HTTP request.
// The IP honors X-Forwarded-For and X-Real-IP before falling back to
// RemoteAddr, with any port stripped.
func OriginFromRequest(r *http.Request) Origin {
	return Origin{IP: extractIPAddress(r), Agent: r.UserAgent()}
}

// extractIPAddress extracts the client IP address from an HTTP request.
// It checks X-Forwarded-For, X-Real-IP, and RemoteAddr in that order.
func extractIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		firstIP := xff
		if idx := strings.Index(xff, ","); idx != -1 {
			firstIP = xff[:idx]
		}
		firstIP = strings.TrimSpace(firstIP)
		if firstIP != "" {
			host, _, err := net.SplitHostPort(firstIP)
			if err != nil {
				// IP might not have a port
				return firstIP
			}
			return host
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		host, _, err := net.SplitHostPort(xri)
		if err != nil {
			return xri
		}
		return host
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
