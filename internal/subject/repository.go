package subject

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no subject exists for the given ID.
	ErrNotFound = errors.New("subject not found")
	// ErrDuplicateName is returned when another subject already uses the
	// name.
	ErrDuplicateName = errors.New("subject name already in use")
)

// Repository defines storage operations for subjects.
type Repository interface {
	Insert(ctx context.Context, s *Subject) error
	Update(ctx context.Context, s *Subject) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Subject, error)
	List(ctx context.Context, offset, limit int) ([]*Subject, int, error)
}

// InMemoryRepository is a thread-safe in-memory implementation of
// Repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	subjects map[string]*Subject
}

// NewInMemoryRepository creates a new in-memory subject repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{subjects: make(map[string]*Subject)}
}

func (r *InMemoryRepository) Insert(ctx context.Context, s *Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.subjects {
		if strings.EqualFold(existing.Name, s.Name) {
			return ErrDuplicateName
		}
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	cp := *s
	r.subjects[s.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Update(ctx context.Context, s *Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.subjects[s.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range r.subjects {
		if id != s.ID && strings.EqualFold(other.Name, s.Name) {
			return ErrDuplicateName
		}
	}
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	cp := *s
	r.subjects[s.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subjects[id]; !ok {
		return ErrNotFound
	}
	delete(r.subjects, id)
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.subjects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *InMemoryRepository) List(ctx context.Context, offset, limit int) ([]*Subject, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Subject, 0, len(r.subjects))
	for _, s := range r.subjects {
		cp := *s
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	total := len(all)
	if offset >= total {
		return []*Subject{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
