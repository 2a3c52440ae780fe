package api

import (
	"encoding/json"
	"net/http"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/subject"
)

// SubjectHandlers serves the subject CRUD and history endpoints.
type SubjectHandlers struct {
	svc     *subject.Service
	history *audit.HistoryService
	respond *Responder
}

// NewSubjectHandlers creates the subject handlers.
func NewSubjectHandlers(svc *subject.Service, history *audit.HistoryService, respond *Responder) *SubjectHandlers {
	return &SubjectHandlers{svc: svc, history: history, respond: respond}
}

// Register wires the subject routes.
func (h *SubjectHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /subjects", h.List)
	mux.HandleFunc("POST /subjects", h.Create)
	mux.HandleFunc("GET /subjects/history", entityHistoryHandler(h.history, subject.EntityName, nil, h.respond))
	mux.HandleFunc("GET /subjects/{id}", h.Get)
	mux.HandleFunc("PUT /subjects/{id}", h.Update)
	mux.HandleFunc("DELETE /subjects/{id}", h.Delete)
}

// List handles GET /subjects.
func (h *SubjectHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := ParsePagination(r)
	subjects, total, err := h.svc.List(r.Context(), (page-1)*perPage, perPage)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	WritePage(w, r.Context(), subjects, PageMetaFor(page, perPage, total))
}

// Create handles POST /subjects.
func (h *SubjectHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in subject.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	created, err := h.svc.Create(r.Context(), in, audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, nil, subject.ErrDuplicateName)
		return
	}
	WriteData(w, r.Context(), http.StatusCreated, created)
}

// Get handles GET /subjects/{id}.
func (h *SubjectHandlers) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, subject.ErrNotFound)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, s)
}

// Update handles PUT /subjects/{id}.
func (h *SubjectHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var in subject.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	updated, err := h.svc.Update(r.Context(), r.PathValue("id"), in, audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, subject.ErrNotFound, subject.ErrDuplicateName)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, updated)
}

// Delete handles DELETE /subjects/{id}.
func (h *SubjectHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id"), audit.OriginFromRequest(r)); err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, subject.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
