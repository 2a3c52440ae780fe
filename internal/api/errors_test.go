package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openschoolhq/schooldesk/internal/validate"
)

func TestResponderError_HidesDetailOutsideDebug(t *testing.T) {
	rs := &Responder{}
	w := httptest.NewRecorder()

	rs.Error(w, context.Background(), http.StatusInternalServerError, ErrCodeInternal,
		"Internal server error", errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Message != "Internal server error" {
		t.Errorf("unexpected message: %s", body.Message)
	}
	if body.Detail != "" {
		t.Errorf("detail must stay hidden outside debug mode, got %q", body.Detail)
	}
}

func TestResponderError_DebugExposesDetail(t *testing.T) {
	rs := &Responder{Debug: true}
	w := httptest.NewRecorder()

	rs.Error(w, context.Background(), http.StatusInternalServerError, ErrCodeInternal,
		"Internal server error", errors.New("pq: connection refused"))

	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Detail != "pq: connection refused" {
		t.Errorf("expected underlying detail in debug mode, got %q", body.Detail)
	}
}

func TestHandleServiceError_Mapping(t *testing.T) {
	notFound := errors.New("thing not found")
	conflict := errors.New("thing already exists")

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"field errors", validate.FieldErrors{"name": "name is required"}, http.StatusUnprocessableEntity},
		{"not found", notFound, http.StatusNotFound},
		{"wrapped not found", errors.Join(errors.New("ctx"), notFound), http.StatusNotFound},
		{"conflict", conflict, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	rs := &Responder{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			rs.HandleServiceError(w, context.Background(), tt.err, notFound, conflict)
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestValidationError_Envelope(t *testing.T) {
	rs := &Responder{}
	w := httptest.NewRecorder()

	rs.ValidationError(w, context.Background(), validate.FieldErrors{
		"name":  "name is required",
		"email": "email is invalid",
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", w.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Message != "The given data was invalid." {
		t.Errorf("unexpected message: %s", body.Message)
	}
	if len(body.Fields) != 2 {
		t.Errorf("expected both field errors, got %v", body.Fields)
	}
}
