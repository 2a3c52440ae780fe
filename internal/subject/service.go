package subject

import (
	"context"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/validate"
)

// Input is the mutable part of a subject accepted on create and update.
type Input struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func (in *Input) validate() error {
	fe := validate.FieldErrors{}
	name, err := validate.String(in.Name, validate.NameConstraints)
	if err != nil {
		fe.Add("name", "name is required and must be at most 120 characters")
	} else {
		in.Name = name
	}
	code, err := validate.String(in.Code, validate.StringConstraints{MaxLength: 16, AllowEmpty: true, TrimSpace: true})
	if err != nil {
		fe.Add("code", "code must be at most 16 characters")
	} else {
		in.Code = code
	}
	return fe.OrNil()
}

// Service coordinates subject mutations with change recording. Audit
// writes are best-effort: the wrapped recorder swallows store failures
// so the primary operation still succeeds.
type Service struct {
	repo     Repository
	recorder audit.Recorder
}

// NewService creates a subject service.
func NewService(repo Repository, recorder audit.Recorder) *Service {
	return &Service{repo: repo, recorder: recorder}
}

// Create validates the input, inserts the subject, then records a CREATE
// change entry with the freshly stored state.
func (s *Service) Create(ctx context.Context, in Input, origin audit.Origin) (*Subject, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	sub := &Subject{Name: in.Name, Code: in.Code}
	if err := s.repo.Insert(ctx, sub); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    sub.ID,
		Action:      audit.ActionCreate,
		AfterState:  sub.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return sub, nil
}

// Update captures the stored state before mutating, applies the change,
// and records an UPDATE entry with both states.
func (s *Service) Update(ctx context.Context, id string, in Input, origin audit.Origin) (*Subject, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sub := &Subject{ID: id, Name: in.Name, Code: in.Code}
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    id,
		Action:      audit.ActionUpdate,
		BeforeState: before.Snapshot(),
		AfterState:  sub.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return sub, nil
}

// Delete removes the subject and records a DELETE entry carrying the
// last stored state.
func (s *Service) Delete(ctx context.Context, id string, origin audit.Origin) error {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    id,
		Action:      audit.ActionDelete,
		BeforeState: before.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return nil
}

// Get returns one subject by ID.
func (s *Service) Get(ctx context.Context, id string) (*Subject, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of subjects ordered by name, plus the total count.
func (s *Service) List(ctx context.Context, offset, limit int) ([]*Subject, int, error) {
	return s.repo.List(ctx, offset, limit)
}

// Exists reports whether a subject with the given ID exists. It satisfies
// the teacher package's catalog dependency for assignment validation.
func (s *Service) Exists(ctx context.Context, id string) bool {
	_, err := s.repo.GetByID(ctx, id)
	return err == nil
}
