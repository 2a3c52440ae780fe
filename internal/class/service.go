package class

import (
	"context"
	"regexp"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/validate"
)

// yearPattern matches school years like "2025-2026".
var yearPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

// TeacherNames resolves teacher IDs to display names in their current
// state. A false ok means the teacher no longer exists.
type TeacherNames interface {
	TeacherName(ctx context.Context, id string) (string, bool)
}

// Input is the mutable part of a class accepted on create and update.
type Input struct {
	Name      string  `json:"name"`
	Grade     int     `json:"grade"`
	Year      string  `json:"year"`
	TeacherID *string `json:"teacher_id"`
}

func (in *Input) validate(ctx context.Context, teachers TeacherNames) error {
	fe := validate.FieldErrors{}
	if name, err := validate.String(in.Name, validate.NameConstraints); err != nil {
		fe.Add("name", "name is required and must be at most 120 characters")
	} else {
		in.Name = name
	}
	if in.Grade < MinGrade || in.Grade > MaxGrade {
		fe.Add("grade", "grade must be between 6 and 12")
	}
	if !yearPattern.MatchString(in.Year) {
		fe.Add("year", "year must look like 2025-2026")
	}
	if in.TeacherID != nil {
		if *in.TeacherID == "" {
			in.TeacherID = nil
		} else if _, ok := teachers.TeacherName(ctx, *in.TeacherID); !ok {
			fe.Add("teacher_id", "homeroom teacher does not exist")
		}
	}
	return fe.OrNil()
}

// Service coordinates class mutations with change recording.
type Service struct {
	repo     Repository
	teachers TeacherNames
	recorder audit.Recorder
}

// NewService creates a class service.
func NewService(repo Repository, teachers TeacherNames, recorder audit.Recorder) *Service {
	return &Service{repo: repo, teachers: teachers, recorder: recorder}
}

// Create validates the input, inserts the class and records a CREATE entry.
func (s *Service) Create(ctx context.Context, in Input, origin audit.Origin) (*Class, error) {
	if err := in.validate(ctx, s.teachers); err != nil {
		return nil, err
	}

	c := &Class{Name: in.Name, Grade: in.Grade, Year: in.Year, TeacherID: in.TeacherID}
	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    c.ID,
		Action:      audit.ActionCreate,
		AfterState:  c.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return c, nil
}

// Update captures the stored state, applies the change and records an
// UPDATE entry with both states.
func (s *Service) Update(ctx context.Context, id string, in Input, origin audit.Origin) (*Class, error) {
	if err := in.validate(ctx, s.teachers); err != nil {
		return nil, err
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c := &Class{ID: id, Name: in.Name, Grade: in.Grade, Year: in.Year, TeacherID: in.TeacherID}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    id,
		Action:      audit.ActionUpdate,
		BeforeState: before.Snapshot(),
		AfterState:  c.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return c, nil
}

// Delete removes the class and records a DELETE entry carrying its last
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

// Get returns one class by ID.
func (s *Service) Get(ctx context.Context, id string) (*Class, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of classes, optionally restricted to one school year.
func (s *Service) List(ctx context.Context, year string, offset, limit int) ([]*Class, int, error) {
	return s.repo.List(ctx, year, offset, limit)
}

// ClassName resolves a class ID to its current display name. It satisfies
// the student package's resolver dependency.
func (s *Service) ClassName(ctx context.Context, id string) (string, bool) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", false
	}
	return c.Name, true
}

// HistoryResolver rewrites class snapshots for presentation, adding a
// teacher_name field resolved from the teacher's current state. A teacher
// deleted since the change was recorded yields no teacher_name.
func HistoryResolver(teachers TeacherNames) audit.StateResolver {
	return func(ctx context.Context, snap audit.Snapshot) audit.Snapshot {
		id, ok := snap["teacher_id"].(string)
		if !ok || id == "" {
			return snap
		}
		name, ok := teachers.TeacherName(ctx, id)
		if !ok {
			return snap
		}
		out := audit.Snapshot{}
		for k, v := range snap {
			out[k] = v
		}
		out["teacher_name"] = name
		return out
	}
}
