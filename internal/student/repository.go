package student

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no student exists for the given ID.
var ErrNotFound = errors.New("student not found")

// Repository defines storage operations for students.
type Repository interface {
	Insert(ctx context.Context, s *Student) error
	Update(ctx context.Context, s *Student) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Student, error)
	List(ctx context.Context, classID string, offset, limit int) ([]*Student, int, error)
}

// InMemoryRepository is a thread-safe in-memory implementation of
// Repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	students map[string]*Student
}

// NewInMemoryRepository creates a new in-memory student repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{students: make(map[string]*Student)}
}

func (r *InMemoryRepository) Insert(ctx context.Context, s *Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	cp := *s
	r.students[s.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Update(ctx context.Context, s *Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.students[s.ID]
	if !ok {
		return ErrNotFound
	}
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	cp := *s
	r.students[s.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.students[id]; !ok {
		return ErrNotFound
	}
	delete(r.students, id)
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.students[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// List returns students ordered by name, optionally restricted to one
// class.
func (r *InMemoryRepository) List(ctx context.Context, classID string, offset, limit int) ([]*Student, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Student, 0, len(r.students))
	for _, s := range r.students {
		if classID != "" && s.ClassID != classID {
			continue
		}
		cp := *s
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	total := len(all)
	if offset >= total {
		return []*Student{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
