package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/score"
	"github.com/openschoolhq/schooldesk/internal/student"
)

// rosterLister lists the students of one class for the gradebook export.
// Satisfied by the student service.
type rosterLister interface {
	List(ctx context.Context, classID string, offset, limit int) ([]*student.Student, int, error)
}

// ScoreHandlers serves the score CRUD, per-student summary and gradebook
// export endpoints.
type ScoreHandlers struct {
	svc     *score.Service
	roster  rosterLister
	classes student.ClassNames
	respond *Responder
}

// NewScoreHandlers creates the score handlers.
func NewScoreHandlers(svc *score.Service, roster rosterLister, classes student.ClassNames, respond *Responder) *ScoreHandlers {
	return &ScoreHandlers{svc: svc, roster: roster, classes: classes, respond: respond}
}

// Register wires the score routes.
func (h *ScoreHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /scores", h.List)
	mux.HandleFunc("POST /scores", h.Create)
	mux.HandleFunc("GET /scores/export", h.ExportGradebook)
	mux.HandleFunc("GET /scores/{id}", h.Get)
	mux.HandleFunc("PUT /scores/{id}", h.Update)
	mux.HandleFunc("DELETE /scores/{id}", h.Delete)
	mux.HandleFunc("GET /students/{id}/scores", h.StudentSummary)
	mux.HandleFunc("GET /classes/{id}/scores", h.ClassSummary)
}

// parseSemester reads the optional semester parameter. Zero means both
// semesters.
func parseSemester(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("semester")
	if raw == "" {
		return 0, nil
	}
	semester, err := strconv.Atoi(raw)
	if err != nil || (semester != 1 && semester != 2) {
		return 0, fmt.Errorf("semester must be 1 or 2")
	}
	return semester, nil
}

// List handles GET /scores, returning one student's scores. student_id is
// required; semester narrows the result.
func (h *ScoreHandlers) List(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("student_id")
	if studentID == "" {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "student_id is required", nil)
		return
	}
	semester, err := parseSemester(r)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	scores, err := h.svc.ListByStudent(r.Context(), studentID, semester)
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, score.ErrUnknownStudent)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, scores)
}

// Create handles POST /scores.
func (h *ScoreHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in score.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	created, err := h.svc.Create(r.Context(), in, audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, nil, score.ErrDuplicateScore)
		return
	}
	WriteData(w, r.Context(), http.StatusCreated, created)
}

// Get handles GET /scores/{id}.
func (h *ScoreHandlers) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, score.ErrNotFound)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, s)
}

// Update handles PUT /scores/{id}.
func (h *ScoreHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var in score.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	updated, err := h.svc.Update(r.Context(), r.PathValue("id"), in, audit.OriginFromRequest(r))
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, score.ErrNotFound, score.ErrDuplicateScore)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, updated)
}

// Delete handles DELETE /scores/{id}.
func (h *ScoreHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id"), audit.OriginFromRequest(r)); err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, score.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StudentSummary handles GET /students/{id}/scores, returning the student's
// scores with their semester average and classification band.
func (h *ScoreHandlers) StudentSummary(w http.ResponseWriter, r *http.Request) {
	semester, err := parseSemester(r)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	summary, err := h.svc.StudentSummary(r.Context(), r.PathValue("id"), semester)
	if err != nil {
		h.respond.HandleServiceError(w, r.Context(), err, score.ErrUnknownStudent)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, summary)
}

// ClassSummary handles GET /classes/{id}/scores, returning the class average
// and the band distribution across the roster.
func (h *ScoreHandlers) ClassSummary(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("id")
	if _, ok := h.classes.ClassName(r.Context(), classID); !ok {
		h.respond.Error(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "class not found", nil)
		return
	}
	semester, err := parseSemester(r)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	students, _, err := h.roster.List(r.Context(), classID, 0, math.MaxInt32)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	ids := make([]string, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}

	summary, err := h.svc.ClassSummary(r.Context(), classID, ids, semester)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	WriteData(w, r.Context(), http.StatusOK, summary)
}

// ExportGradebook handles GET /scores/export, streaming a class's per-student
// averages as a CSV or XLSX download.
func (h *ScoreHandlers) ExportGradebook(w http.ResponseWriter, r *http.Request) {
	classID := r.URL.Query().Get("class_id")
	if classID == "" {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "class_id is required", nil)
		return
	}
	if _, ok := h.classes.ClassName(r.Context(), classID); !ok {
		h.respond.Error(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "class not found", nil)
		return
	}
	semester, err := parseSemester(r)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	format := audit.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = audit.ExportFormatXLSX
	}
	if format != audit.ExportFormatCSV && format != audit.ExportFormatXLSX {
		h.respond.Error(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "format must be csv or xlsx", nil)
		return
	}

	students, _, err := h.roster.List(r.Context(), classID, 0, math.MaxInt32)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	rows := make([]score.GradebookRow, 0, len(students))
	for _, st := range students {
		summary, err := h.svc.StudentSummary(r.Context(), st.ID, semester)
		if err != nil {
			h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
			return
		}
		rows = append(rows, score.GradebookRow{
			StudentID:   st.ID,
			StudentName: st.Name,
			ScoreCount:  len(summary.Scores),
			Average:     summary.Average,
			Band:        summary.Band,
		})
	}

	out, err := score.ExportGradebook(rows, format)
	if err != nil {
		h.respond.Error(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error", err)
		return
	}
	writeDownload(w, fmt.Sprintf("gradebook-%s.%s", classID, format), format, out)
}
