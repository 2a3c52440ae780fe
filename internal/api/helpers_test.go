package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/auth"
	"github.com/openschoolhq/schooldesk/internal/class"
	"github.com/openschoolhq/schooldesk/internal/score"
	"github.com/openschoolhq/schooldesk/internal/student"
	"github.com/openschoolhq/schooldesk/internal/subject"
	"github.com/openschoolhq/schooldesk/internal/teacher"
	"github.com/openschoolhq/schooldesk/internal/user"
)

// testApp wires the full service graph over in-memory stores with every
// route registered, mirroring the production assembly.
type testApp struct {
	mux       *http.ServeMux
	auditRepo *audit.InMemoryRepository
	logins    *auth.InMemoryLoginHistory
	tokens    *auth.JWTService

	users    *user.Service
	subjects *subject.Service
	teachers *teacher.Service
	classes  *class.Service
	students *student.Service
	scores   *score.Service
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditRepo := audit.NewInMemoryRepository()
	recorder, err := audit.NewStoreRecorder(auditRepo)
	if err != nil {
		t.Fatalf("NewStoreRecorder: %v", err)
	}
	best := audit.NewBestEffortRecorder(recorder, logger)

	userRepo := user.NewInMemoryRepository()
	users := user.NewService(userRepo, best, bcrypt.MinCost)
	subjects := subject.NewService(subject.NewInMemoryRepository(), best)
	teachers := teacher.NewService(teacher.NewInMemoryRepository(), users, subjects, recorder, logger)
	classes := class.NewService(class.NewInMemoryRepository(), teachers, best)
	students := student.NewService(student.NewInMemoryRepository(), classes, best)
	scores := score.NewService(score.NewInMemoryRepository(), students, subjects, best)

	history, err := audit.NewHistoryService(auditRepo, user.NewDirectory(userRepo), logger)
	if err != nil {
		t.Fatalf("NewHistoryService: %v", err)
	}

	respond := &Responder{}
	logins := auth.NewInMemoryLoginHistory()
	tokens := auth.NewJWTService("handler-test-secret")

	mux := http.NewServeMux()
	NewSubjectHandlers(subjects, history, respond).Register(mux)
	NewClassHandlers(classes, history, teachers, respond).Register(mux)
	NewTeacherHandlers(teachers, history, respond).Register(mux)
	NewStudentHandlers(students, classes, respond).Register(mux)
	NewUserHandlers(users, respond).Register(mux)
	NewScoreHandlers(scores, students, classes, respond).Register(mux)
	NewHistoryHandlers(history, auditRepo, map[string]audit.StateResolver{
		class.EntityName:   class.HistoryResolver(teachers),
		student.EntityName: student.HistoryResolver(classes),
	}, respond).Register(mux)
	authHandlers := NewAuthHandlers(users, tokens, logins, respond, logger)
	authHandlers.Register(mux)
	authHandlers.RegisterLoginHistory(mux)

	return &testApp{
		mux:       mux,
		auditRepo: auditRepo,
		logins:    logins,
		tokens:    tokens,
		users:     users,
		subjects:  subjects,
		teachers:  teachers,
		classes:   classes,
		students:  students,
		scores:    scores,
	}
}

// do runs one request through the full route table and returns the recorded
// response.
func (a *testApp) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.mux.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the data field of a success envelope into out.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

// decodePage unmarshals a paginated envelope into out and returns the meta.
func decodePage(t *testing.T, w *httptest.ResponseRecorder, out any) audit.PageMeta {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
		Meta audit.PageMeta  `json:"meta"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	return envelope.Meta
}

// decodeError unmarshals an error envelope.
func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	return body
}

// createSubject seeds one subject through the API.
func (a *testApp) createSubject(t *testing.T, name, code string) *subject.Subject {
	t.Helper()

	w := a.do(t, http.MethodPost, "/subjects", subject.Input{Name: name, Code: code})
	if w.Code != http.StatusCreated {
		t.Fatalf("createSubject %q: status %d, body %s", name, w.Code, w.Body.String())
	}
	var s subject.Subject
	decodeData(t, w, &s)
	return &s
}

// createTeacher seeds one teacher (and its account) through the API.
func (a *testApp) createTeacher(t *testing.T, name, email, username string, subjectIDs ...string) *teacher.Created {
	t.Helper()

	w := a.do(t, http.MethodPost, "/teachers", teacher.Input{
		Name:       name,
		Email:      email,
		Username:   username,
		SubjectIDs: subjectIDs,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("createTeacher %q: status %d, body %s", name, w.Code, w.Body.String())
	}
	var created teacher.Created
	decodeData(t, w, &created)
	return &created
}

// createClass seeds one class through the API.
func (a *testApp) createClass(t *testing.T, name string, grade int, year string, teacherID *string) *class.Class {
	t.Helper()

	w := a.do(t, http.MethodPost, "/classes", class.Input{
		Name:      name,
		Grade:     grade,
		Year:      year,
		TeacherID: teacherID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("createClass %q: status %d, body %s", name, w.Code, w.Body.String())
	}
	var c class.Class
	decodeData(t, w, &c)
	return &c
}

// createStudent seeds one student through the API.
func (a *testApp) createStudent(t *testing.T, name, classID string) *student.Student {
	t.Helper()

	w := a.do(t, http.MethodPost, "/students", student.Input{
		Name:        name,
		DateOfBirth: "2010-09-01",
		Gender:      "female",
		ClassID:     classID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("createStudent %q: status %d, body %s", name, w.Code, w.Body.String())
	}
	var s student.Student
	decodeData(t, w, &s)
	return &s
}

// createScore seeds one score through the API.
func (a *testApp) createScore(t *testing.T, studentID, subjectID string, semester int, value float64) *score.Score {
	t.Helper()

	w := a.do(t, http.MethodPost, "/scores", score.Input{
		StudentID: studentID,
		SubjectID: subjectID,
		Semester:  semester,
		Value:     value,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("createScore: status %d, body %s", w.Code, w.Body.String())
	}
	var s score.Score
	decodeData(t, w, &s)
	return &s
}
