package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// LoginOutcome is the result of a login attempt.
type LoginOutcome string

const (
	// LoginSuccess marks a successful authentication.
	LoginSuccess LoginOutcome = "success"
	// LoginFailure marks a rejected authentication (bad credentials).
	LoginFailure LoginOutcome = "failure"
)

// LoginRecord is one login attempt, successful or not. Kept separately from
// the change history because logins do not mutate any tracked entity.
type LoginRecord struct {
	ID          int64        `json:"id"`
	Username    string       `json:"username"`
	UserID      string       `json:"user_id,omitempty"`
	Outcome     LoginOutcome `json:"outcome"`
	ClientIP    string       `json:"client_ip,omitempty"`
	ClientAgent string       `json:"client_agent,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

// LoginHistoryRepository stores and queries login attempts.
type LoginHistoryRepository interface {
	// RecordLogin appends one login attempt.
	RecordLogin(ctx context.Context, rec LoginRecord) (*LoginRecord, error)

	// QueryLogins returns attempts, newest first, optionally filtered by
	// username, plus the total match count. Offset and limit are row-based.
	QueryLogins(ctx context.Context, username string, offset, limit int) ([]*LoginRecord, int, error)
}

// InMemoryLoginHistory is an in-memory implementation of
// LoginHistoryRepository. Used for testing and development.
type InMemoryLoginHistory struct {
	mu      sync.RWMutex
	records []*LoginRecord
	nextID  int64
}

// NewInMemoryLoginHistory creates a new in-memory login history store.
func NewInMemoryLoginHistory() *InMemoryLoginHistory {
	return &InMemoryLoginHistory{nextID: 1}
}

// RecordLogin appends one login attempt.
func (r *InMemoryLoginHistory) RecordLogin(_ context.Context, rec LoginRecord) (*LoginRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.ID = r.nextID
	r.nextID++
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	stored := rec
	r.records = append(r.records, &stored)

	result := stored
	return &result, nil
}

// QueryLogins returns attempts newest first with the total match count.
func (r *InMemoryLoginHistory) QueryLogins(_ context.Context, username string, offset, limit int) ([]*LoginRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*LoginRecord
	for _, rec := range r.records {
		if username != "" && rec.Username != username {
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
