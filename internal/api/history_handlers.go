package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openschoolhq/schooldesk/internal/audit"
)

// trackedEntities are the table names the generic audit log endpoint
// accepts.
var trackedEntities = map[string]bool{
	"classes":  true,
	"subjects": true,
	"teachers": true,
	"students": true,
	"users":    true,
	"scores":   true,
}

// historyFilter parses the shared history query parameters. entityName is
// fixed for the per-entity endpoints and read from table_name on the
// generic one.
func historyFilter(r *http.Request, entityName string) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		EntityName: entityName,
		EntityID:   q.Get("record_id"),
		ActorID:    q.Get("user_id"),
	}

	if raw := q.Get("action_type"); raw != "" {
		action := audit.Action(strings.ToUpper(raw))
		if !action.Valid() {
			return f, fmt.Errorf("action_type must be CREATE, UPDATE or DELETE")
		}
		f.Action = action
	}
	if raw := dateParam(q, "date_from", "from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, fmt.Errorf("date_from must look like 2026-01-31")
		}
		f.From = from
	}
	if raw := dateParam(q, "date_to", "to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, fmt.Errorf("date_to must look like 2026-01-31")
		}
		// Inclusive end of day.
		f.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	return f, nil
}

// dateParam reads a date filter, preferring the long name over its short
// alias.
func dateParam(q url.Values, name, alias string) string {
	if v := q.Get(name); v != "" {
		return v
	}
	return q.Get(alias)
}

// HistoryHandlers serves the generic audit log endpoints.
type HistoryHandlers struct {
	history   *audit.HistoryService
	repo      audit.Repository
	resolvers map[string]audit.StateResolver
	respond   *Responder
}

// NewHistoryHandlers creates the audit log handlers. resolvers maps entity
// names to their presentation resolvers and may be nil.
func NewHistoryHandlers(history *audit.HistoryService, repo audit.Repository, resolvers map[string]audit.StateResolver, respond *Responder) *HistoryHandlers {
	return &HistoryHandlers{history: history, repo: repo, resolvers: resolvers, respond: respond}
}

// Register wires the audit log routes.
func (h *HistoryHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/audit-logs", h.List)
	mux.HandleFunc("GET /api/audit-logs/export", h.Export)
}

// List handles GET /api/audit-logs. table_name is required; the remaining
// filters are optional.
func (h *HistoryHandlers) List(w http.ResponseWriter, r *http.Request) {
	entityName := r.URL.Query().Get("table_name")
	if !trackedEntities[entityName] {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest,
			"table_name is required and must name a tracked entity", nil)
		return
	}

	filter, err := historyFilter(r, entityName)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	page, perPage := ParsePagination(r)

	result, err := h.history.Query(r.Context(), audit.HistoryRequest{
		Filter:   filter,
		Page:     page,
		PerPage:  perPage,
		Resolver: h.resolvers[entityName],
	})
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	WritePage(w, r.Context(), result.Data, result.Meta)
}

// Export handles GET /api/audit-logs/export, streaming the filtered history
// as a CSV or XLSX download.
func (h *HistoryHandlers) Export(w http.ResponseWriter, r *http.Request) {
	entityName := r.URL.Query().Get("table_name")
	if !trackedEntities[entityName] {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest,
			"table_name is required and must name a tracked entity", nil)
		return
	}
	filter, err := historyFilter(r, entityName)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	format := audit.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = audit.ExportFormatXLSX
	}
	if format != audit.ExportFormatCSV && format != audit.ExportFormatXLSX {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest,
			"format must be csv or xlsx", nil)
		return
	}

	out, err := audit.ExportHistory(r.Context(), h.repo, audit.ExportOptions{
		Format: format,
		Filter: filter,
	})
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	writeDownload(w, fmt.Sprintf("%s-history.%s", entityName, format), format, out)
}

func writeDownload(w http.ResponseWriter, filename string, format audit.ExportFormat, body []byte) {
	contentType := "text/csv; charset=utf-8"
	if format == audit.ExportFormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// entityHistoryHandler serves one entity's dedicated history endpoint.
func entityHistoryHandler(history *audit.HistoryService, entityName string, resolver audit.StateResolver, respond *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := historyFilter(r, entityName)
		if err != nil {
			respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
			return
		}
		page, perPage := ParsePagination(r)

		result, err := history.Query(r.Context(), audit.HistoryRequest{
			Filter:   filter,
			Page:     page,
			PerPage:  perPage,
			Resolver: resolver,
		})
		if err != nil {
			respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
			return
		}
		WritePage(w, r.Context(), result.Data, result.Meta)
	}
}
