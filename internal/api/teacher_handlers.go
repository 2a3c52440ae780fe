package api

import (
	"encoding/json"
	"net/http"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/teacher"
	"github.com/openschoolhq/schooldesk/internal/user"
)

// TeacherHandlers serves the teacher CRUD and history endpoints.
type TeacherHandlers struct {
	svc     *teacher.Service
	history *audit.HistoryService
	respond *Responder
}

// NewTeacherHandlers creates the teacher handlers.
func NewTeacherHandlers(svc *teacher.Service, history *audit.HistoryService, respond *Responder) *TeacherHandlers {
	return &TeacherHandlers{svc: svc, history: history, respond: respond}
}

// Register wires the teacher routes.
func (h *TeacherHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /teachers", h.List)
	mux.HandleFunc("POST /teachers", h.Create)
	mux.HandleFunc("GET /teachers/history", entityHistoryHandler(h.history, teacher.EntityName, nil, h.respond))
	mux.HandleFunc("GET /teachers/{id}", h.Get)
	mux.HandleFunc("PUT /teachers/{id}", h.Update)
	mux.HandleFunc("DELETE /teachers/{id}", h.Delete)
}

// List handles GET /teachers.
func (h *TeacherHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := ParsePagination(r)
	teachers, total, err := h.svc.List(r.Context(), (page-1)*perPage, perPage)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	WritePage(w, r.Context(), teachers, PageMetaFor(page, perPage, total))
}

// Create handles POST /teachers. The response carries the provisioned
// account and its generated password; the password is shown here and on the
// account's CREATE history entry only.
func (h *TeacherHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in teacher.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	created, err := h.svc.Create(r.Context(), in, audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, nil,
			teacher.ErrDuplicateEmail, user.ErrDuplicateUsername)
		return
	}
	WriteData(w, r.Context(), http.StatusCreated, created)
}

// Get handles GET /teachers/{id}.
func (h *TeacherHandlers) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, teacher.ErrNotFound)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, t)
}

// Update handles PUT /teachers/{id}.
func (h *TeacherHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var in teacher.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	updated, err := h.svc.Update(r.Context(), r.PathValue("id"), in, audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, teacher.ErrNotFound, teacher.ErrDuplicateEmail)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, updated)
}

// Delete handles DELETE /teachers/{id}. The linked account is removed
// alongside the teacher.
func (h *TeacherHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id"), audit.OriginFromRequest(r)); err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, teacher.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
