package audit

import (
	"context"
	"errors"
	"testing"
)

type stubDirectory struct {
	actors  map[string]*Actor
	err     error
	lookups int
}

func (d *stubDirectory) LookupActor(_ context.Context, id string) (*Actor, error) {
	d.lookups++
	if d.err != nil {
		return nil, d.err
	}
	return d.actors[id], nil
}

func seedHistory(t *testing.T, repo Repository, n int, actorID string) {
	t.Helper()
	for i := 0; i < n; i++ {
		var actor *string
		if actorID != "" {
			actor = strPtr(actorID)
		}
		if _, err := repo.Append(context.Background(), Entry{
			EntityName: "classes",
			EntityID:   "c1",
			Action:     ActionUpdate,
			ActorID:    actor,
			BeforeState: Snapshot{
				"name": "10A1",
				"rev":  float64(i),
			},
			AfterState: Snapshot{
				"name": "10A1",
				"rev":  float64(i + 1),
			},
		}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
}

func TestHistoryPagination(t *testing.T) {
	repo := NewInMemoryRepository()
	seedHistory(t, repo, 23, "")
	svc, err := NewHistoryService(repo, nil, discardLogger())
	if err != nil {
		t.Fatalf("NewHistoryService: %v", err)
	}

	tests := []struct {
		name      string
		page      int
		perPage   int
		wantLen   int
		wantPage  int
		wantLast  int
		wantSize  int
		wantTotal int
	}{
		{"defaults", 0, 0, 10, 1, 3, 10, 23},
		{"middle page", 2, 10, 10, 2, 3, 10, 23},
		{"short last page", 3, 10, 3, 3, 3, 10, 23},
		{"past end", 9, 10, 0, 9, 3, 10, 23},
		{"per page clamped to max", 1, 500, 23, 1, 1, MaxPerPage, 23},
		{"negative page", -2, 5, 5, 1, 5, 5, 23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.Query(context.Background(), HistoryRequest{
				Filter:  Filter{EntityName: "classes"},
				Page:    tt.page,
				PerPage: tt.perPage,
			})
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(page.Data) != tt.wantLen {
				t.Errorf("len(data) = %d, want %d", len(page.Data), tt.wantLen)
			}
			m := page.Meta
			if m.CurrentPage != tt.wantPage || m.LastPage != tt.wantLast || m.PerPage != tt.wantSize || m.Total != tt.wantTotal {
				t.Errorf("meta = %+v, want page=%d last=%d per=%d total=%d",
					m, tt.wantPage, tt.wantLast, tt.wantSize, tt.wantTotal)
			}
		})
	}
}

func TestHistoryEmptyResult(t *testing.T) {
	svc, err := NewHistoryService(NewInMemoryRepository(), nil, discardLogger())
	if err != nil {
		t.Fatalf("NewHistoryService: %v", err)
	}
	page, err := svc.Query(context.Background(), HistoryRequest{Filter: Filter{EntityName: "classes"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page.Data) != 0 {
		t.Errorf("len(data) = %d, want 0", len(page.Data))
	}
	if page.Meta.LastPage != 1 || page.Meta.Total != 0 {
		t.Errorf("meta = %+v, want last_page=1 total=0", page.Meta)
	}
}

func TestHistoryActorResolution(t *testing.T) {
	repo := NewInMemoryRepository()
	seedHistory(t, repo, 4, "u1")
	dir := &stubDirectory{actors: map[string]*Actor{
		"u1": {ID: "u1", Name: "Trần Thị Bình", Email: "binh@school.edu.vn", Role: "admin"},
	}}
	svc, err := NewHistoryService(repo, dir, discardLogger())
	if err != nil {
		t.Fatalf("NewHistoryService: %v", err)
	}

	page, err := svc.Query(context.Background(), HistoryRequest{Filter: Filter{EntityName: "classes"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, entry := range page.Data {
		if entry.Actor == nil || entry.Actor.Name != "Trần Thị Bình" {
			t.Fatalf("actor not resolved: %+v", entry.Actor)
		}
	}
	// One actor across the page costs a single lookup.
	if dir.lookups != 1 {
		t.Errorf("lookups = %d, want 1 (memoized per query)", dir.lookups)
	}
}

func TestHistoryActorLookupFailureDegrades(t *testing.T) {
	repo := NewInMemoryRepository()
	seedHistory(t, repo, 2, "u1")
	dir := &stubDirectory{err: errors.New("directory down")}
	svc, err := NewHistoryService(repo, dir, discardLogger())
	if err != nil {
		t.Fatalf("NewHistoryService: %v", err)
	}

	page, err := svc.Query(context.Background(), HistoryRequest{Filter: Filter{EntityName: "classes"}})
	if err != nil {
		t.Fatalf("lookup failure must not fail the page: %v", err)
	}
	for _, entry := range page.Data {
		if entry.Actor == nil || entry.Actor.ID != "u1" || entry.Actor.Name != "" {
			t.Fatalf("expected ID-only actor, got %+v", entry.Actor)
		}
	}
}

func TestHistoryDeletedActor(t *testing.T) {
	repo := NewInMemoryRepository()
	seedHistory(t, repo, 1, "gone")
	dir := &stubDirectory{actors: map[string]*Actor{}}
	svc, err := NewHistoryService(repo, dir, discardLogger())
	if err != nil {
		t.Fatalf("NewHistoryService: %v", err)
	}

	page, err := svc.Query(context.Background(), HistoryRequest{Filter: Filter{EntityName: "classes"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	actor := page.Data[0].Actor
	if actor == nil || actor.ID != "gone" || actor.Name != "" {
		t.Fatalf("deleted principal should yield ID-only actor, got %+v", actor)
	}
}

func TestHistoryRedactsSecrets(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	// CREATE carries generated_password for one-time display.
	if _, err := repo.Append(ctx, Entry{
		EntityName: "users",
		EntityID:   "u9",
		Action:     ActionCreate,
		AfterState: Snapshot{
			"username":           "nv.an",
			"password":           "hash",
			"generated_password": "Xk4mPq9rTw2y",
		},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// A later UPDATE still carries it in storage; reads must strip it.
	if _, err := repo.Append(ctx, Entry{
		EntityName: "users",
		EntityID:   "u9",
		Action:     ActionUpdate,
		BeforeState: Snapshot{
			"username":           "nv.an",
			"password":           "hash",
			"generated_password": "Xk4mPq9rTw2y",
		},
		AfterState: Snapshot{
			"username":           "nv.an.2",
			"password":           "hash2",
			"generated_password": "Xk4mPq9rTw2y",
		},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	svc, err := NewHistoryService(repo, nil, discardLogger())
	if err != nil {
		t.Fatalf("NewHistoryService: %v", err)
	}
	page, err := svc.Query(ctx, HistoryRequest{Filter: Filter{EntityName: "users"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	// Newest first: index 0 is the UPDATE, index 1 the CREATE.
	update, create := page.Data[0], page.Data[1]

	if create.AfterState["password"] != MaskedValue {
		t.Errorf("create password = %v, want masked", create.AfterState["password"])
	}
	if create.AfterState["generated_password"] != "Xk4mPq9rTw2y" {
		t.Errorf("generated_password missing from CREATE record: %v", create.AfterState)
	}
	for _, snap := range []Snapshot{update.BeforeState, update.AfterState} {
		if snap["password"] != MaskedValue {
			t.Errorf("update password = %v, want masked", snap["password"])
		}
		if _, ok := snap["generated_password"]; ok {
			t.Error("generated_password leaked on UPDATE record")
		}
	}
}

func TestHistoryStateResolver(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	if _, err := repo.Append(ctx, Entry{
		EntityName: "classes",
		EntityID:   "c1",
		Action:     ActionCreate,
		AfterState: Snapshot{"name": "10A1", "teacher_id": "t7"},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	svc, err := NewHistoryService(repo, nil, discardLogger())
	if err != nil {
		t.Fatalf("NewHistoryService: %v", err)
	}
	resolver := func(_ context.Context, s Snapshot) Snapshot {
		if id, ok := s["teacher_id"].(string); ok && id == "t7" {
			out := Snapshot{}
			for k, v := range s {
				out[k] = v
			}
			out["teacher_name"] = "Lê Văn Cường"
			return out
		}
		return s
	}

	page, err := svc.Query(ctx, HistoryRequest{
		Filter:   Filter{EntityName: "classes"},
		Resolver: resolver,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if page.Data[0].AfterState["teacher_name"] != "Lê Văn Cường" {
		t.Errorf("resolver not applied: %v", page.Data[0].AfterState)
	}
}

func TestHistoryServiceRequiresRepository(t *testing.T) {
	if _, err := NewHistoryService(nil, nil, nil); !errors.Is(err, ErrNilRepository) {
		t.Errorf("nil repo = %v, want ErrNilRepository", err)
	}
}
