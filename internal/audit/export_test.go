package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func seedExport(t *testing.T) Repository {
	t.Helper()
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if _, err := repo.Append(ctx, Entry{
		EntityName: "users",
		EntityID:   "u1",
		Action:     ActionCreate,
		ActorID:    strPtr("admin"),
		AfterState: Snapshot{
			"username":           "nv.an",
			"password":           "hash",
			"generated_password": "Xk4mPq9rTw2y",
		},
		ClientIP: "10.0.0.1",
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := repo.Append(ctx, Entry{
		EntityName:  "users",
		EntityID:    "u1",
		Action:      ActionDelete,
		BeforeState: Snapshot{"username": "nv.an", "password": "hash"},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	return repo
}

func TestExportCSV(t *testing.T) {
	repo := seedExport(t)

	out, err := ExportHistory(context.Background(), repo, ExportOptions{
		Format: ExportFormatCSV,
		Filter: Filter{EntityName: "users"},
	})
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("reading exported CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "id" || rows[0][3] != "action" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	// Newest first: DELETE then CREATE.
	if rows[1][3] != "DELETE" || rows[2][3] != "CREATE" {
		t.Errorf("rows not newest-first: %v / %v", rows[1][3], rows[2][3])
	}

	body := string(out)
	if strings.Contains(body, "hash") {
		t.Error("password hash leaked into export")
	}
	if !strings.Contains(body, MaskedValue) {
		t.Error("masked secrets missing from export")
	}
	// One-time password survives only on the CREATE row.
	if !strings.Contains(rows[2][6], "Xk4mPq9rTw2y") {
		t.Errorf("generated_password missing from CREATE after_state: %v", rows[2][6])
	}
	if strings.Contains(rows[1][5], "generated_password") {
		t.Errorf("generated_password leaked on DELETE before_state: %v", rows[1][5])
	}
}

func TestExportXLSX(t *testing.T) {
	repo := seedExport(t)

	out, err := ExportHistory(context.Background(), repo, ExportOptions{
		Format: ExportFormatXLSX,
		Filter: Filter{EntityName: "users"},
	})
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("opening exported workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("History")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][1] != "entity" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][3] != "DELETE" {
		t.Errorf("first data row = %v, want DELETE newest-first", rows[1][3])
	}
}

func TestExportLimit(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := repo.Append(ctx, Entry{
			EntityName: "scores",
			EntityID:   "sc1",
			Action:     ActionCreate,
			AfterState: Snapshot{"value": float64(i)},
		}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	out, err := ExportHistory(ctx, repo, ExportOptions{
		Format: ExportFormatCSV,
		Filter: Filter{EntityName: "scores"},
		Limit:  4,
	})
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	if len(rows) != 5 {
		t.Errorf("got %d rows, want header + 4", len(rows))
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, err := ExportHistory(context.Background(), NewInMemoryRepository(), ExportOptions{Format: "pdf"})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
