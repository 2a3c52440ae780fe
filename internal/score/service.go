package score

import (
	"context"
	"errors"
	"math"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/validate"
)

// ErrUnknownStudent is returned when a summary is requested for a student
// that does not exist.
var ErrUnknownStudent = errors.New("student not found")

// Roster reports whether a student exists.
type Roster interface {
	StudentExists(ctx context.Context, id string) bool
}

// SubjectCatalog reports whether a subject exists.
type SubjectCatalog interface {
	Exists(ctx context.Context, id string) bool
}

// Input is the mutable part of a score accepted on create and update.
type Input struct {
	StudentID string  `json:"student_id"`
	SubjectID string  `json:"subject_id"`
	Semester  int     `json:"semester"`
	Value     float64 `json:"value"`
}

func (in *Input) validate(ctx context.Context, roster Roster, subjects SubjectCatalog) error {
	fe := validate.FieldErrors{}
	if in.StudentID == "" {
		fe.Add("student_id", "student is required")
	} else if !roster.StudentExists(ctx, in.StudentID) {
		fe.Add("student_id", "student does not exist")
	}
	if in.SubjectID == "" {
		fe.Add("subject_id", "subject is required")
	} else if !subjects.Exists(ctx, in.SubjectID) {
		fe.Add("subject_id", "subject does not exist")
	}
	if in.Semester != 1 && in.Semester != 2 {
		fe.Add("semester", "semester must be 1 or 2")
	}
	if in.Value < MinValue || in.Value > MaxValue || math.IsNaN(in.Value) {
		fe.Add("value", "value must be between 0 and 10")
	}
	return fe.OrNil()
}

// Service coordinates score mutations with change recording.
type Service struct {
	repo     Repository
	roster   Roster
	subjects SubjectCatalog
	recorder audit.Recorder
}

// NewService creates a score service.
func NewService(repo Repository, roster Roster, subjects SubjectCatalog, recorder audit.Recorder) *Service {
	return &Service{repo: repo, roster: roster, subjects: subjects, recorder: recorder}
}

// Create validates the input, inserts the score and records a CREATE entry.
func (s *Service) Create(ctx context.Context, in Input, origin audit.Origin) (*Score, error) {
	if err := in.validate(ctx, s.roster, s.subjects); err != nil {
		return nil, err
	}

	sc := &Score{
		StudentID: in.StudentID,
		SubjectID: in.SubjectID,
		Semester:  in.Semester,
		Value:     in.Value,
	}
	if err := s.repo.Insert(ctx, sc); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    sc.ID,
		Action:      audit.ActionCreate,
		AfterState:  sc.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return sc, nil
}

// Update captures the stored state, applies the change and records an
// UPDATE entry with both states.
func (s *Service) Update(ctx context.Context, id string, in Input, origin audit.Origin) (*Score, error) {
	if err := in.validate(ctx, s.roster, s.subjects); err != nil {
		return nil, err
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sc := &Score{
		ID:        id,
		StudentID: in.StudentID,
		SubjectID: in.SubjectID,
		Semester:  in.Semester,
		Value:     in.Value,
	}
	if err := s.repo.Update(ctx, sc); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    id,
		Action:      audit.ActionUpdate,
		BeforeState: before.Snapshot(),
		AfterState:  sc.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return sc, nil
}

// Delete removes the score and records a DELETE entry carrying the last
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

// Get returns one score by ID.
func (s *Service) Get(ctx context.Context, id string) (*Score, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByStudent returns a student's recorded scores, optionally narrowed to
// one semester (0 means both).
func (s *Service) ListByStudent(ctx context.Context, studentID string, semester int) ([]*Score, error) {
	if !s.roster.StudentExists(ctx, studentID) {
		return nil, ErrUnknownStudent
	}
	return s.repo.ListByStudent(ctx, studentID, semester)
}

// StudentSummary aggregates a student's scores for one semester into an
// average on the 10-point scale and its classification band. The average is
// rounded to two decimals, matching how report cards display it.
func (s *Service) StudentSummary(ctx context.Context, studentID string, semester int) (*Summary, error) {
	if !s.roster.StudentExists(ctx, studentID) {
		return nil, ErrUnknownStudent
	}
	scores, err := s.repo.ListByStudent(ctx, studentID, semester)
	if err != nil {
		return nil, err
	}

	summary := &Summary{StudentID: studentID, Semester: semester, Scores: scores}
	if len(scores) == 0 {
		summary.Band = BandYeu
		return summary, nil
	}

	var sum float64
	for _, sc := range scores {
		sum += sc.Value
	}
	summary.Average = math.Round(sum/float64(len(scores))*100) / 100
	summary.Band = Classify(summary.Average)
	return summary, nil
}

// ClassSummary aggregates per-student averages across a class roster into a
// class average and the count of students in each classification band.
// Students without recorded scores count as yeu and do not weigh into the
// class average.
func (s *Service) ClassSummary(ctx context.Context, classID string, studentIDs []string, semester int) (*ClassSummary, error) {
	summary := &ClassSummary{
		ClassID:  classID,
		Semester: semester,
		Students: len(studentIDs),
		Distribution: map[string]int{
			BandGioi:      0,
			BandKha:       0,
			BandTrungBinh: 0,
			BandYeu:       0,
		},
	}

	var sum float64
	var graded int
	for _, id := range studentIDs {
		st, err := s.StudentSummary(ctx, id, semester)
		if err != nil {
			return nil, err
		}
		summary.Distribution[st.Band]++
		if len(st.Scores) > 0 {
			sum += st.Average
			graded++
		}
	}
	if graded > 0 {
		summary.Average = math.Round(sum/float64(graded)*100) / 100
	}
	return summary, nil
}
