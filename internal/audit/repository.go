package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Filter narrows a history query. EntityName is required by every endpoint;
// the remaining fields are optional (zero value = no filtering).
type Filter struct {
	EntityName string
	EntityID   string
	ActorID    string
	Action     Action
	From       time.Time
	To         time.Time
}

// Repository is the append-and-query port over the change record store.
type Repository interface {
	// Append persists a validated entry and returns the stored record with
	// its assigned ID and timestamp.
	Append(ctx context.Context, entry Entry) (*ChangeRecord, error)

	// Query returns one page of records matching the filter, newest first,
	// together with the total match count. Offset and limit are row-based.
	Query(ctx context.Context, f Filter, offset, limit int) ([]*ChangeRecord, int, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records []*ChangeRecord
	nextID  int64

	// AppendErr, when set, is returned by Append. Lets tests simulate an
	// unavailable change record store.
	AppendErr error
}

// NewInMemoryRepository creates a new in-memory change record repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

// Append persists the entry, assigning a monotonically increasing ID and the
// write-time timestamp.
func (r *InMemoryRepository) Append(_ context.Context, entry Entry) (*ChangeRecord, error) {
	if r.AppendErr != nil {
		return nil, r.AppendErr
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := &ChangeRecord{
		ID:          r.nextID,
		EntityName:  entry.EntityName,
		EntityID:    entry.EntityID,
		Action:      entry.Action,
		ActorID:     entry.ActorID,
		BeforeState: entry.BeforeState,
		AfterState:  entry.AfterState,
		ClientIP:    entry.ClientIP,
		ClientAgent: entry.ClientAgent,
		OccurredAt:  time.Now().UTC(),
	}
	r.nextID++
	r.records = append(r.records, rec)

	recCopy := *rec
	return &recCopy, nil
}

// Query returns matching records ordered by occurred_at descending (ties
// broken by descending ID so pagination is stable), plus the total count.
func (r *InMemoryRepository) Query(_ context.Context, f Filter, offset, limit int) ([]*ChangeRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*ChangeRecord
	for _, rec := range r.records {
		if !matches(rec, f) {
			continue
		}
		recCopy := *rec
		matched = append(matched, &recCopy)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

func matches(rec *ChangeRecord, f Filter) bool {
	if f.EntityName != "" && rec.EntityName != f.EntityName {
		return false
	}
	if f.EntityID != "" && rec.EntityID != f.EntityID {
		return false
	}
	if f.ActorID != "" && (rec.ActorID == nil || *rec.ActorID != f.ActorID) {
		return false
	}
	if f.Action != "" && rec.Action != f.Action {
		return false
	}
	if !f.From.IsZero() && rec.OccurredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && rec.OccurredAt.After(f.To) {
		return false
	}
	return true
}
