// Package api provides the HTTP handlers and response envelopes for the
// school management API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/openschoolhq/schooldesk/internal/middleware"
	"github.com/openschoolhq/schooldesk/internal/validate"
)

// Error codes attached to the request context for the logging middleware.
const (
	ErrCodeValidation  = "validation_error"
	ErrCodeAuthFailed  = "auth_failed"
	ErrCodeNotFound    = "not_found"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeInternal    = "internal_error"
	ErrCodeForbidden   = "forbidden"
	ErrCodeConflict    = "conflict"
	ErrCodeBadRequest  = "bad_request"
)

// ErrorResponse is the standard error envelope. Message is always safe to
// show; Detail carries the underlying error string and is populated in
// debug mode only. Fields carries per-field validation messages on 422s.
type ErrorResponse struct {
	Message string               `json:"message"`
	Detail  string               `json:"error,omitempty"`
	Fields  validate.FieldErrors `json:"errors,omitempty"`
}

// Responder writes error envelopes. Debug controls whether underlying error
// details leak into responses; it must stay off in production.
type Responder struct {
	Debug bool
}

// Error writes a JSON error envelope and tags the request context with the
// error code for the logging middleware.
func (rs *Responder) Error(w http.ResponseWriter, ctx context.Context, status int, code, message string, err error) {
	ctx = middleware.SetErrorCode(ctx, code)
	middleware.UpdateResponseContext(w, ctx)

	body := ErrorResponse{Message: message}
	if rs.Debug && err != nil {
		body.Detail = err.Error()
	}
	writeErrorBody(w, ctx, status, body)
}

// ValidationError writes a 422 envelope carrying the per-field messages.
func (rs *Responder) ValidationError(w http.ResponseWriter, ctx context.Context, fe validate.FieldErrors) {
	ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
	middleware.UpdateResponseContext(w, ctx)

	writeErrorBody(w, ctx, http.StatusUnprocessableEntity, ErrorResponse{
		Message: "The given data was invalid.",
		Fields:  fe,
	})
}

// HandleServiceError maps a service-layer error to the right HTTP response:
// field validation failures become 422s, not-found sentinels 404s, conflict
// sentinels 409s, everything else a 500 with the detail hidden outside
// debug mode.
func (rs *Responder) HandleServiceError(w http.ResponseWriter, ctx context.Context, err error, notFound error, conflicts ...error) {
	var fe validate.FieldErrors
	if errors.As(err, &fe) {
		rs.ValidationError(w, ctx, fe)
		return
	}
	if notFound != nil && errors.Is(err, notFound) {
		rs.Error(w, ctx, http.StatusNotFound, ErrCodeNotFound, notFound.Error(), nil)
		return
	}
	for _, conflict := range conflicts {
		if errors.Is(err, conflict) {
			rs.Error(w, ctx, http.StatusConflict, ErrCodeConflict, conflict.Error(), nil)
			return
		}
	}
	rs.Error(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
}

func writeErrorBody(w http.ResponseWriter, ctx context.Context, status int, body ErrorResponse) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}
