package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pagination defaults for history queries.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Actor is the display identity of the principal behind a change, resolved
// at read time from the principal store.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ActorDirectory resolves actor IDs to display identities. A nil actor with
// a nil error means the principal no longer exists.
type ActorDirectory interface {
	LookupActor(ctx context.Context, id string) (*Actor, error)
}

// StateResolver rewrites a snapshot for presentation, typically replacing
// foreign keys with display names looked up in their current state. Displayed
// names therefore reflect the referenced entity as it is now, not as it was
// when the change happened.
type StateResolver func(ctx context.Context, s Snapshot) Snapshot

// HistoryEntry is one reconstructed change, ready for rendering.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	EntityName  string    `json:"table_name"`
	EntityID    string    `json:"record_id"`
	Action      Action    `json:"action_type"`
	Actor       *Actor    `json:"actor,omitempty"`
	BeforeState Snapshot  `json:"before_state,omitempty"`
	AfterState  Snapshot  `json:"after_state,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	ClientAgent string    `json:"client_agent,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// PageMeta describes one page of history results.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// HistoryPage is the paginated result of a history query.
type HistoryPage struct {
	Data []HistoryEntry `json:"data"`
	Meta PageMeta       `json:"meta"`
}

// HistoryRequest parameterizes a history query. Page is 1-based; zero values
// fall back to page 1 and the service default page size.
type HistoryRequest struct {
	Filter   Filter
	Page     int
	PerPage  int
	Resolver StateResolver
}

// HistoryService answers "what happened to entities of kind X", newest first,
// with actor identities joined in and secrets masked.
type HistoryService struct {
	repo      Repository
	directory ActorDirectory
	logger    *slog.Logger
}

// NewHistoryService creates a HistoryService. directory may be nil, in which
// case actor identities are omitted from results.
func NewHistoryService(repo Repository, directory ActorDirectory, logger *slog.Logger) (*HistoryService, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryService{repo: repo, directory: directory, logger: logger}, nil
}

// Query returns one page of reconstructed change history. Secret fields are
// masked on every returned snapshot; generated_password survives only on
// CREATE records for one-time display.
func (s *HistoryService) Query(ctx context.Context, req HistoryRequest) (*HistoryPage, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	records, total, err := s.repo.Query(ctx, req.Filter, (page-1)*perPage, perPage)
	if err != nil {
		s.logger.ErrorContext(ctx, "history query failed",
			"entity", req.Filter.EntityName,
			"error", err)
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	actors := make(map[string]*Actor)
	entries := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		entry := HistoryEntry{
			ID:          rec.ID,
			EntityName:  rec.EntityName,
			EntityID:    rec.EntityID,
			Action:      rec.Action,
			ClientIP:    rec.ClientIP,
			ClientAgent: rec.ClientAgent,
			OccurredAt:  rec.OccurredAt,
		}

		keepGenerated := rec.Action == ActionCreate
		entry.BeforeState = s.presentState(ctx, rec.BeforeState, false, req.Resolver)
		entry.AfterState = s.presentState(ctx, rec.AfterState, keepGenerated, req.Resolver)

		if rec.ActorID != nil {
			entry.Actor = s.resolveActor(ctx, *rec.ActorID, actors)
		}
		entries = append(entries, entry)
	}

	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}
	return &HistoryPage{
		Data: entries,
		Meta: PageMeta{
			CurrentPage: page,
			LastPage:    lastPage,
			PerPage:     perPage,
			Total:       total,
		},
	}, nil
}

func (s *HistoryService) presentState(ctx context.Context, snap Snapshot, keepGenerated bool, resolver StateResolver) Snapshot {
	if snap == nil {
		return nil
	}
	out := RedactSnapshot(snap, keepGenerated)
	if resolver != nil {
		out = resolver(ctx, out)
	}
	return out
}

// resolveActor looks up an actor identity, memoizing per query so a page of
// records by one principal costs a single lookup. Lookup failures degrade to
// an ID-only actor rather than failing the page.
func (s *HistoryService) resolveActor(ctx context.Context, id string, cache map[string]*Actor) *Actor {
	if s.directory == nil {
		return &Actor{ID: id}
	}
	if actor, ok := cache[id]; ok {
		return actor
	}
	actor, err := s.directory.LookupActor(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "actor lookup failed", "actor_id", id, "error", err)
		actor = &Actor{ID: id}
	}
	if actor == nil {
		// Principal was deleted after the change was recorded.
		actor = &Actor{ID: id}
	}
	cache[id] = actor
	return actor
}
