package score

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no score exists for the given ID.
	ErrNotFound = errors.New("score not found")
	// ErrDuplicateScore is returned when the student already has a score
	// for the subject and semester.
	ErrDuplicateScore = errors.New("score already recorded for this subject and semester")
)

// Repository defines storage operations for scores.
type Repository interface {
	Insert(ctx context.Context, s *Score) error
	Update(ctx context.Context, s *Score) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Score, error)
	ListByStudent(ctx context.Context, studentID string, semester int) ([]*Score, error)
}

// InMemoryRepository is a thread-safe in-memory implementation of
// Repository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	scores map[string]*Score
}

// NewInMemoryRepository creates a new in-memory score repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{scores: make(map[string]*Score)}
}

func sameSlot(a, b *Score) bool {
	return a.StudentID == b.StudentID && a.SubjectID == b.SubjectID && a.Semester == b.Semester
}

func (r *InMemoryRepository) Insert(ctx context.Context, s *Score) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.scores {
		if sameSlot(existing, s) {
			return ErrDuplicateScore
		}
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	cp := *s
	r.scores[s.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Update(ctx context.Context, s *Score) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.scores[s.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range r.scores {
		if id != s.ID && sameSlot(other, s) {
			return ErrDuplicateScore
		}
	}
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	cp := *s
	r.scores[s.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.scores[id]; !ok {
		return ErrNotFound
	}
	delete(r.scores, id)
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Score, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scores[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// ListByStudent returns the student's scores ordered by subject ID,
// optionally restricted to one semester (0 = both).
func (r *InMemoryRepository) ListByStudent(ctx context.Context, studentID string, semester int) ([]*Score, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Score
	for _, s := range r.scores {
		if s.StudentID != studentID {
			continue
		}
		if semester != 0 && s.Semester != semester {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}
