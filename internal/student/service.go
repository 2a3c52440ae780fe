package student

import (
	"context"
	"time"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/validate"
)

// ClassNames resolves class IDs to display names in their current state. A
// false ok means the class no longer exists.
type ClassNames interface {
	ClassName(ctx context.Context, id string) (string, bool)
}

// Input is the mutable part of a student accepted on create and update.
type Input struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	ClassID     string `json:"class_id"`
	Address     string `json:"address"`
}

func (in *Input) validate(ctx context.Context, classes ClassNames) error {
	fe := validate.FieldErrors{}
	if name, err := validate.String(in.Name, validate.NameConstraints); err != nil {
		fe.Add("name", "name is required and must be at most 120 characters")
	} else {
		in.Name = name
	}
	if _, err := time.Parse("2006-01-02", in.DateOfBirth); err != nil {
		fe.Add("date_of_birth", "date of birth must look like 2010-09-05")
	}
	if !ValidGender(in.Gender) {
		fe.Add("gender", "gender must be male, female or other")
	}
	if in.ClassID == "" {
		fe.Add("class_id", "class is required")
	} else if _, ok := classes.ClassName(ctx, in.ClassID); !ok {
		fe.Add("class_id", "class does not exist")
	}
	if addr, err := validate.String(in.Address, validate.StringConstraints{MaxLength: 255, AllowEmpty: true, TrimSpace: true}); err != nil {
		fe.Add("address", "address must be at most 255 characters")
	} else {
		in.Address = addr
	}
	return fe.OrNil()
}

// Service coordinates student mutations with change recording.
type Service struct {
	repo     Repository
	classes  ClassNames
	recorder audit.Recorder
}

// NewService creates a student service.
func NewService(repo Repository, classes ClassNames, recorder audit.Recorder) *Service {
	return &Service{repo: repo, classes: classes, recorder: recorder}
}

// Create validates the input, inserts the student and records a CREATE
// entry.
func (s *Service) Create(ctx context.Context, in Input, origin audit.Origin) (*Student, error) {
	if err := in.validate(ctx, s.classes); err != nil {
		return nil, err
	}

	st := &Student{
		Name:        in.Name,
		DateOfBirth: in.DateOfBirth,
		Gender:      in.Gender,
		ClassID:     in.ClassID,
		Address:     in.Address,
	}
	if err := s.repo.Insert(ctx, st); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    st.ID,
		Action:      audit.ActionCreate,
		AfterState:  st.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return st, nil
}

// Update captures the stored state, applies the change and records an
// UPDATE entry with both states.
func (s *Service) Update(ctx context.Context, id string, in Input, origin audit.Origin) (*Student, error) {
	if err := in.validate(ctx, s.classes); err != nil {
		return nil, err
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &Student{
		ID:          id,
		Name:        in.Name,
		DateOfBirth: in.DateOfBirth,
		Gender:      in.Gender,
		ClassID:     in.ClassID,
		Address:     in.Address,
	}
	if err := s.repo.Update(ctx, st); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    id,
		Action:      audit.ActionUpdate,
		BeforeState: before.Snapshot(),
		AfterState:  st.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return st, nil
}

// Delete removes the student and records a DELETE entry carrying the last
// stored state.
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

// Get returns one student by ID.
func (s *Service) Get(ctx context.Context, id string) (*Student, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of students, optionally restricted to one class.
func (s *Service) List(ctx context.Context, classID string, offset, limit int) ([]*Student, int, error) {
	return s.repo.List(ctx, classID, offset, limit)
}

// StudentExists reports whether a student with the given ID exists. It
// satisfies the score package's roster dependency.
func (s *Service) StudentExists(ctx context.Context, id string) bool {
	_, err := s.repo.GetByID(ctx, id)
	return err == nil
}

// HistoryResolver rewrites student snapshots for presentation, adding a
// class_name field resolved from the class's current state.
func HistoryResolver(classes ClassNames) audit.StateResolver {
	return func(ctx context.Context, snap audit.Snapshot) audit.Snapshot {
		id, ok := snap["class_id"].(string)
		if !ok || id == "" {
			return snap
		}
		name, ok := classes.ClassName(ctx, id)
		if !ok {
			return snap
		}
		out := audit.Snapshot{}
		for k, v := range snap {
			out[k] = v
		}
		out["class_name"] = name
		return out
	}
}
