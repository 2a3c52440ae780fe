package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/openschoolhq/schooldesk/internal/subject"
)

func TestAuditLogs_RequiresTableName(t *testing.T) {
	app := newTestApp(t)

	for _, target := range []string{
		"/api/audit-logs",
		"/api/audit-logs?table_name=payments",
		"/api/audit-logs/export?format=csv",
	} {
		w := app.do(t, http.MethodGet, target, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", target, w.Code)
		}
	}
}

func TestAuditLogs_FilterByAction(t *testing.T) {
	app := newTestApp(t)
	s := app.createSubject(t, "Mathematics", "MATH")
	app.do(t, http.MethodPut, "/subjects/"+s.ID, subject.Input{Name: "Advanced Mathematics"})
	app.do(t, http.MethodDelete, "/subjects/"+s.ID, nil)

	w := app.do(t, http.MethodGet, "/api/audit-logs?table_name=subjects&action_type=update", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var entries []map[string]any
	meta := decodePage(t, w, &entries)
	if meta.Total != 1 {
		t.Fatalf("expected 1 UPDATE entry, got %d", meta.Total)
	}
	if entries[0]["action_type"] != "UPDATE" {
		t.Errorf("expected UPDATE, got %v", entries[0]["action_type"])
	}
}

func TestAuditLogs_BadActionType(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/audit-logs?table_name=subjects&action_type=UPSERT", nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestAuditLogs_BadDateFilter(t *testing.T) {
	app := newTestApp(t)

	for _, target := range []string{
		"/api/audit-logs?table_name=subjects&date_from=31-01-2026",
		"/api/audit-logs?table_name=subjects&from=31-01-2026",
	} {
		w := app.do(t, http.MethodGet, target, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", target, w.Code)
		}
	}
}

func TestAuditLogs_DateRangeFilter(t *testing.T) {
	app := newTestApp(t)
	app.createSubject(t, "Literature", "LIT")

	// A lower bound in the far future excludes everything.
	w := app.do(t, http.MethodGet, "/api/audit-logs?table_name=subjects&date_from=2099-01-01", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var entries []map[string]any
	meta := decodePage(t, w, &entries)
	if meta.Total != 0 || len(entries) != 0 {
		t.Errorf("expected no entries before 2099, got %d (total=%d)", len(entries), meta.Total)
	}

	// An upper bound in the past excludes everything too.
	w = app.do(t, http.MethodGet, "/api/audit-logs?table_name=subjects&date_to=2000-01-01", nil)
	entries = nil
	meta = decodePage(t, w, &entries)
	if meta.Total != 0 {
		t.Errorf("expected no entries up to 2000, got total=%d", meta.Total)
	}

	// A range spanning today keeps the record, via the short aliases.
	w = app.do(t, http.MethodGet, "/api/audit-logs?table_name=subjects&from=2000-01-01&to=2099-01-01", nil)
	entries = nil
	meta = decodePage(t, w, &entries)
	if meta.Total != 1 {
		t.Errorf("expected 1 entry inside the range, got total=%d", meta.Total)
	}
}

func TestAuditLogs_PaginationMeta(t *testing.T) {
	app := newTestApp(t)
	for _, name := range []string{"Mathematics", "Physics", "Chemistry"} {
		app.createSubject(t, name, "")
	}

	w := app.do(t, http.MethodGet, "/api/audit-logs?table_name=subjects&per_page=2", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var entries []map[string]any
	meta := decodePage(t, w, &entries)
	if len(entries) != 2 {
		t.Errorf("expected 2 entries on the first page, got %d", len(entries))
	}
	if meta.Total != 3 || meta.LastPage != 2 || meta.PerPage != 2 {
		t.Errorf("unexpected meta: %+v", meta)
	}
}

func TestAuditLogs_CapturesClientOrigin(t *testing.T) {
	app := newTestApp(t)
	s := app.createSubject(t, "Biology", "BIO")

	w := app.do(t, http.MethodGet, "/api/audit-logs?table_name=subjects&record_id="+s.ID, nil)

	var entries []map[string]any
	decodePage(t, w, &entries)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	// httptest requests carry a synthetic RemoteAddr.
	if ip, ok := entries[0]["client_ip"].(string); !ok || ip == "" {
		t.Error("expected the client IP to be recorded")
	}
}

func TestAuditLogsExport_CSV(t *testing.T) {
	app := newTestApp(t)
	app.createSubject(t, "Geography", "GEO")

	w := app.do(t, http.MethodGet, "/api/audit-logs/export?table_name=subjects&format=csv", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "subjects-history.csv") {
		t.Errorf("unexpected content disposition %s", cd)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Geography") {
		t.Error("expected exported row to carry the snapshot")
	}
}

func TestAuditLogsExport_BadFormat(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/audit-logs/export?table_name=subjects&format=pdf", nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}
