package api

import (
	"encoding/json"
	"net/http"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/user"
)

// UserHandlers serves the account CRUD endpoints. Passwords are never
// accepted from clients; creation and reset return a generated password
// once.
type UserHandlers struct {
	svc     *user.Service
	respond *Responder
}

// NewUserHandlers creates the account handlers.
func NewUserHandlers(svc *user.Service, respond *Responder) *UserHandlers {
	return &UserHandlers{svc: svc, respond: respond}
}

// Register wires the account routes.
func (h *UserHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /users", h.List)
	mux.HandleFunc("POST /users", h.Create)
	mux.HandleFunc("GET /users/{id}", h.Get)
	mux.HandleFunc("PUT /users/{id}", h.Update)
	mux.HandleFunc("DELETE /users/{id}", h.Delete)
	mux.HandleFunc("POST /users/{id}/reset-password", h.ResetPassword)
}

// List handles GET /users.
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := ParsePagination(r)
	users, total, err := h.svc.List(r.Context(), (page-1)*perPage, perPage)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	WritePage(w, r.Context(), users, PageMetaFor(page, perPage, total))
}

// Create handles POST /users. The generated password in the response is the
// only time it is shown outside the account's CREATE history entry.
func (h *UserHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in user.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	created, err := h.svc.Create(r.Context(), in, audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, nil, user.ErrDuplicateUsername)
		return
	}
	WriteData(w, r.Context(), http.StatusCreated, created)
}

// Get handles GET /users/{id}.
func (h *UserHandlers) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, user.ErrNotFound)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, u)
}

// Update handles PUT /users/{id}. Username and password cannot change here.
func (h *UserHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var in user.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	updated, err := h.svc.Update(r.Context(), r.PathValue("id"), in, audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, user.ErrNotFound)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, updated)
}

// ResetPassword handles POST /users/{id}/reset-password, replacing the
// stored hash with a freshly generated password returned once.
func (h *UserHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ResetPassword(r.Context(), r.PathValue("id"), audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, user.ErrNotFound)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, result)
}

// Delete handles DELETE /users/{id}.
func (h *UserHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id"), audit.OriginFromRequest(r)); err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, user.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
