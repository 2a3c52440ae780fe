package api

import (
	"encoding/json"
	"net/http"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/class"
)

// ClassHandlers serves the class CRUD and history endpoints.
type ClassHandlers struct {
	svc      *class.Service
	history  *audit.HistoryService
	teachers class.TeacherNames
	respond  *Responder
}

// NewClassHandlers creates the class handlers. teachers backs the history
// resolver that replaces teacher_id with the teacher's current name.
func NewClassHandlers(svc *class.Service, history *audit.HistoryService, teachers class.TeacherNames, respond *Responder) *ClassHandlers {
	return &ClassHandlers{svc: svc, history: history, teachers: teachers, respond: respond}
}

// Register wires the class routes.
func (h *ClassHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /classes", h.List)
	mux.HandleFunc("POST /classes", h.Create)
	mux.HandleFunc("GET /classes/history", entityHistoryHandler(h.history, class.EntityName, class.HistoryResolver(h.teachers), h.respond))
	mux.HandleFunc("GET /classes/{id}", h.Get)
	mux.HandleFunc("PUT /classes/{id}", h.Update)
	mux.HandleFunc("DELETE /classes/{id}", h.Delete)
}

// List handles GET /classes. An optional year parameter narrows the result
// to one school year.
func (h *ClassHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := ParsePagination(r)
	classes, total, err := h.svc.List(r.Context(), r.URL.Query().Get("year"), (page-1)*perPage, perPage)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	WritePage(w, r.Context(), classes, PageMetaFor(page, perPage, total))
}

// Create handles POST /classes.
func (h *ClassHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in class.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	created, err := h.svc.Create(r.Context(), in, audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, nil, class.ErrDuplicateClass)
		return
	}
	WriteData(w, r.Context(), http.StatusCreated, created)
}

// Get handles GET /classes/{id}.
func (h *ClassHandlers) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, class.ErrNotFound)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, c)
}

// Update handles PUT /classes/{id}.
func (h *ClassHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var in class.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	updated, err := h.svc.Update(r.Context(), r.PathValue("id"), in, audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, class.ErrNotFound, class.ErrDuplicateClass)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, updated)
}

// Delete handles DELETE /classes/{id}.
func (h *ClassHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id"), audit.OriginFromRequest(r)); err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, class.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
