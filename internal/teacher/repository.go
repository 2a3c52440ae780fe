package teacher

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
	// ErrNotFound is returned when no teacher exists for the given ID.
	ErrNotFound = errors.New("teacher not found")
	// ErrDuplicateEmail is returned when another teacher already uses the
	// email address.
	ErrDuplicateEmail = errors.New("teacher email already in use")
)

// Repository defines storage operations for teachers.
type Repository interface {
	Insert(ctx context.Context, t *Teacher) error
	Update(ctx context.Context, t *Teacher) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Teacher, error)
	List(ctx context.Context, offset, limit int) ([]*Teacher, int, error)
}

// InMemoryRepository is a thread-safe in-memory implementation of
// Repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	teachers map[string]*Teacher
}

// NewInMemoryRepository creates a new in-memory teacher repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{teachers: make(map[string]*Teacher)}
}

func copyTeacher(t *Teacher) *Teacher {
	cp := *t
	cp.SubjectIDs = append([]string(nil), t.SubjectIDs...)
	return &cp
}

func (r *InMemoryRepository) Insert(ctx context.Context, t *Teacher) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.teachers {
		if strings.EqualFold(existing.Email, t.Email) {
			return ErrDuplicateEmail
		}
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.teachers[t.ID] = copyTeacher(t)
	return nil
}

func (r *InMemoryRepository) Update(ctx context.Context, t *Teacher) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.teachers[t.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range r.teachers {
		if id != t.ID && strings.EqualFold(other.Email, t.Email) {
			return ErrDuplicateEmail
		}
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	r.teachers[t.ID] = copyTeacher(t)
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.teachers[id]; !ok {
		return ErrNotFound
	}
	delete(r.teachers, id)
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Teacher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.teachers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTeacher(t), nil
}

func (r *InMemoryRepository) List(ctx context.Context, offset, limit int) ([]*Teacher, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Teacher, 0, len(r.teachers))
	for _, t := range r.teachers {
		all = append(all, copyTeacher(t))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	total := len(all)
	if offset >= total {
		return []*Teacher{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
