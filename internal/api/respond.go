package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/openschoolhq/schooldesk/internal/audit"
)

// Envelope is the standard success envelope: the payload under data, page
// metadata under meta when the response is paginated.
type Envelope struct {
	Data any             `json:"data"`
	Meta *audit.PageMeta `json:"meta,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// WriteData writes the payload wrapped in the data envelope.
func WriteData(w http.ResponseWriter, ctx context.Context, status int, data any) {
	WriteJSON(w, ctx, status, Envelope{Data: data})
}

// WritePage writes one page of results with its metadata.
func WritePage(w http.ResponseWriter, ctx context.Context, data any, meta audit.PageMeta) {
	WriteJSON(w, ctx, http.StatusOK, Envelope{Data: data, Meta: &meta})
}

// ParsePagination reads page and per_page query parameters, clamping them
// to the history service's bounds. Absent or malformed values fall back to
// the defaults.
func ParsePagination(r *http.Request) (page, perPage int) {
	page = 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	perPage = audit.DefaultPerPage
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && v > 0 {
		perPage = v
	}
	if perPage > audit.MaxPerPage {
		perPage = audit.MaxPerPage
	}
	return page, perPage
}

// PageMetaFor builds page metadata from a row-offset query result.
func PageMetaFor(page, perPage, total int) audit.PageMeta {
	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}
	return audit.PageMeta{
		CurrentPage: page,
		LastPage:    lastPage,
		PerPage:     perPage,
		Total:       total,
	}
}
