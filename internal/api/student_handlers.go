package api

import (
	"encoding/json"
	"net/http"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/student"
)

// StudentHandlers serves the student CRUD endpoints, including the per-class
// roster listing.
type StudentHandlers struct {
	svc     *student.Service
	classes student.ClassNames
	respond *Responder
}

// NewStudentHandlers creates the student handlers.
func NewStudentHandlers(svc *student.Service, classes student.ClassNames, respond *Responder) *StudentHandlers {
	return &StudentHandlers{svc: svc, classes: classes, respond: respond}
}

// Register wires the student routes.
func (h *StudentHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /students", h.List)
	mux.HandleFunc("POST /students", h.Create)
	mux.HandleFunc("GET /students/{id}", h.Get)
	mux.HandleFunc("PUT /students/{id}", h.Update)
	mux.HandleFunc("DELETE /students/{id}", h.Delete)
	mux.HandleFunc("GET /classes/{id}/students", h.ListByClass)
}

// List handles GET /students. An optional class_id parameter narrows the
// result to one class.
func (h *StudentHandlers) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, r.URL.Query().Get("class_id"))
}

// ListByClass handles GET /classes/{id}/students.
func (h *StudentHandlers) ListByClass(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("id")
	if _, ok := h.classes.ClassName(r.Context(), classID); !ok {
		h.respond.Error(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "class not found", nil)
		return
	}
	h.list(w, r, classID)
}

func (h *StudentHandlers) list(w http.ResponseWriter, r *http.Request, classID string) {
	page, perPage := ParsePagination(r)
	students, total, err := h.svc.List(r.Context(), classID, (page-1)*perPage, perPage)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	WritePage(w, r.Context(), students, PageMetaFor(page, perPage, total))
}

// Create handles POST /students.
func (h *StudentHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in student.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	created, err := h.svc.Create(r.Context(), in, audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, nil)
		return
	}
	WriteData(w, r.Context(), http.StatusCreated, created)
}

// Get handles GET /students/{id}.
func (h *StudentHandlers) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, student.ErrNotFound)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, s)
}

// Update handles PUT /students/{id}.
func (h *StudentHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var in student.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	updated, err := h.svc.Update(r.Context(), r.PathValue("id"), in, audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, student.ErrNotFound)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, updated)
}

// Delete handles DELETE /students/{id}.
func (h *StudentHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id"), audit.OriginFromRequest(r)); err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, student.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
