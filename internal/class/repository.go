package class

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
	// ErrNotFound is returned when no class exists for the given ID.
	ErrNotFound = errors.New("class not found")
	// ErrDuplicateClass is returned when a class with the same name, grade
	// and year already exists.
	ErrDuplicateClass = errors.New("class already exists for this name, grade and year")
)

// Repository defines storage operations for classes.
type Repository interface {
	Insert(ctx context.Context, c *Class) error
	Update(ctx context.Context, c *Class) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Class, error)
	List(ctx context.Context, year string, offset, limit int) ([]*Class, int, error)
}

// InMemoryRepository is a thread-safe in-memory implementation of
// Repository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewInMemoryRepository creates a new in-memory class repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{classes: make(map[string]*Class)}
}

func sameClass(a, b *Class) bool {
	return strings.EqualFold(a.Name, b.Name) && a.Grade == b.Grade && a.Year == b.Year
}

func (r *InMemoryRepository) Insert(ctx context.Context, c *Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.classes {
		if sameClass(existing, c) {
			return ErrDuplicateClass
		}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	r.classes[c.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Update(ctx context.Context, c *Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.classes[c.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range r.classes {
		if id != c.ID && sameClass(other, c) {
			return ErrDuplicateClass
		}
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	r.classes[c.ID] = &cp
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.classes[id]; !ok {
		return ErrNotFound
	}
	delete(r.classes, id)
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.classes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// List returns classes ordered by grade then name, optionally restricted to
// one school year.
func (r *InMemoryRepository) List(ctx context.Context, year string, offset, limit int) ([]*Class, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		if year != "" && c.Year != year {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Grade != all[j].Grade {
			return all[i].Grade < all[j].Grade
		}
		return all[i].Name < all[j].Name
	})

	total := len(all)
	if offset >= total {
		return []*Class{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
