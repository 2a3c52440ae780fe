package api

import (
	"net/http"
	"testing"

	"github.com/openschoolhq/schooldesk/internal/student"
)

func TestCreateStudent_Success(t *testing.T) {
	app := newTestApp(t)
	c := app.createClass(t, "10A1", 10, "2026-2027", nil)

	s := app.createStudent(t, "Nguyen Thi Mai", c.ID)

	if s.ID == "" {
		t.Error("expected generated id")
	}
	if s.ClassID != c.ID {
		t.Errorf("expected class_id %s, got %s", c.ID, s.ClassID)
	}
}

func TestCreateStudent_UnknownClass(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/students", student.Input{
		Name:        "Tran Van Nam",
		DateOfBirth: "2011-03-15",
		Gender:      "male",
		ClassID:     "missing",
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeError(t, w)
	if _, ok := body.Fields["class_id"]; !ok {
		t.Errorf("expected a class_id field error, got %v", body.Fields)
	}
}

func TestCreateStudent_BadDateOfBirth(t *testing.T) {
	app := newTestApp(t)
	c := app.createClass(t, "10A2", 10, "2026-2027", nil)

	w := app.do(t, http.MethodPost, "/students", student.Input{
		Name:        "Le Thi Oanh",
		DateOfBirth: "15-03-2011",
		Gender:      "female",
		ClassID:     c.ID,
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeError(t, w)
	if _, ok := body.Fields["date_of_birth"]; !ok {
		t.Errorf("expected a date_of_birth field error, got %v", body.Fields)
	}
}

func TestListStudentsByClass(t *testing.T) {
	app := newTestApp(t)
	c1 := app.createClass(t, "10A3", 10, "2026-2027", nil)
	c2 := app.createClass(t, "10A4", 10, "2026-2027", nil)
	app.createStudent(t, "Pham Van Phuc", c1.ID)
	app.createStudent(t, "Hoang Thi Quynh", c1.ID)
	app.createStudent(t, "Vu Van Son", c2.ID)

	w := app.do(t, http.MethodGet, "/classes/"+c1.ID+"/students", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var students []*student.Student
	meta := decodePage(t, w, &students)
	if meta.Total != 2 {
		t.Errorf("expected 2 students in class, got %d", meta.Total)
	}
	for _, s := range students {
		if s.ClassID != c1.ID {
			t.Errorf("student %s in wrong class %s", s.Name, s.ClassID)
		}
	}
}

func TestListStudentsByClass_UnknownClass(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/classes/missing/students", nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestUpdateStudent_MoveClass(t *testing.T) {
	app := newTestApp(t)
	c1 := app.createClass(t, "11B1", 11, "2026-2027", nil)
	c2 := app.createClass(t, "11B2", 11, "2026-2027", nil)
	s := app.createStudent(t, "Dang Thi Trang", c1.ID)

	w := app.do(t, http.MethodPut, "/students/"+s.ID, student.Input{
		Name:        s.Name,
		DateOfBirth: "2010-09-01",
		Gender:      "female",
		ClassID:     c2.ID,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated student.Student
	decodeData(t, w, &updated)
	if updated.ClassID != c2.ID {
		t.Errorf("expected student moved to %s, got %s", c2.ID, updated.ClassID)
	}
}

func TestDeleteStudent_HistorySurvives(t *testing.T) {
	app := newTestApp(t)
	c := app.createClass(t, "12C1", 12, "2026-2027", nil)
	s := app.createStudent(t, "Ngo Van Uy", c.ID)

	w := app.do(t, http.MethodDelete, "/students/"+s.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}

	w = app.do(t, http.MethodGet, "/api/audit-logs?table_name=students&record_id="+s.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var entries []map[string]any
	meta := decodePage(t, w, &entries)
	if meta.Total != 2 {
		t.Fatalf("expected CREATE and DELETE entries to survive deletion, got %d", meta.Total)
	}
	if entries[0]["action_type"] != "DELETE" {
		t.Errorf("expected newest entry to be the DELETE, got %v", entries[0]["action_type"])
	}
	if _, present := entries[0]["after_state"]; present {
		t.Error("DELETE entry must carry no after_state")
	}
}
