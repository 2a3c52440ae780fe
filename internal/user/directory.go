package user

import (
	"context"
	"errors"

	"github.com/openschoolhq/schooldesk/internal/audit"
)

// Directory adapts the user repository to the history service's actor
// lookup. A deleted account resolves to (nil, nil) so the read path can
// render an ID-only actor instead of failing.
type Directory struct {
	repo Repository
}

// NewDirectory creates a Directory over repo.
func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

// LookupActor implements audit.ActorDirectory.
func (d *Directory) LookupActor(ctx context.Context, id string) (*audit.Actor, error) {
	u, err := d.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &audit.Actor{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}, nil
}
