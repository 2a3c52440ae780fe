package teacher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/user"
	"github.com/openschoolhq/schooldesk/internal/validate"
)

// Accounts is the slice of the user service teacher creation needs: it
// provisions a login account with a generated password and can remove it
// again when creation is rolled back.
type Accounts interface {
	Create(ctx context.Context, in user.CreateInput, origin audit.Origin) (*user.Created, error)
	Delete(ctx context.Context, id string, origin audit.Origin) error
}

// SubjectCatalog reports whether a subject exists.
type SubjectCatalog interface {
	Exists(ctx context.Context, id string) bool
}

// Input is the mutable part of a teacher accepted on create and update.
// Username is used on create only, for the provisioned login account.
type Input struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Username   string   `json:"username"`
	SubjectIDs []string `json:"subject_ids"`
}

// Created pairs a stored teacher with the provisioned account and its
// one-time generated password.
type Created struct {
	Teacher           *Teacher   `json:"teacher"`
	Account           *user.User `json:"account"`
	GeneratedPassword string     `json:"generated_password"`
}

// Service coordinates teacher mutations with account provisioning and
// change recording. Creation is the one strict path: the profile, the
// account and the change record either all land or none do. Updates and
// deletes record best-effort like every other entity.
type Service struct {
	repo     Repository
	accounts Accounts
	subjects SubjectCatalog
	strict   audit.Recorder
	best     audit.Recorder
	logger   *slog.Logger
}

// NewService creates a teacher service. recorder must be a strict recorder;
// the service derives the best-effort wrapper for non-create mutations.
func NewService(repo Repository, accounts Accounts, subjects SubjectCatalog, recorder audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		accounts: accounts,
		subjects: subjects,
		strict:   recorder,
		best:     audit.NewBestEffortRecorder(recorder, logger),
		logger:   logger,
	}
}

func (s *Service) validateInput(ctx context.Context, in *Input, forCreate bool) error {
	fe := validate.FieldErrors{}
	if name, err := validate.String(in.Name, validate.NameConstraints); err != nil {
		fe.Add("name", "name is required and must be at most 120 characters")
	} else {
		in.Name = name
	}
	if email, err := validate.Email(in.Email); err != nil {
		fe.Add("email", "a valid email address is required")
	} else {
		in.Email = email
	}
	if phone, err := validate.String(in.Phone, validate.StringConstraints{MaxLength: 20, AllowEmpty: true, TrimSpace: true}); err != nil {
		fe.Add("phone", "phone must be at most 20 characters")
	} else {
		in.Phone = phone
	}
	if forCreate {
		if username, err := validate.String(in.Username, validate.UsernameConstraints); err != nil {
			fe.Add("username", "username must be 3-64 characters of letters, digits, dot, dash or underscore")
		} else {
			in.Username = username
		}
	}
	seen := map[string]bool{}
	for _, id := range in.SubjectIDs {
		if seen[id] {
			fe.Add("subject_ids", "subject assignments contain duplicates")
			break
		}
		seen[id] = true
		if !s.subjects.Exists(ctx, id) {
			fe.Add("subject_ids", fmt.Sprintf("subject %s does not exist", id))
			break
		}
	}
	return fe.OrNil()
}

// Create provisions the teacher profile, a login account and the subject
// assignments, then records a CREATE entry strictly: if the change record
// cannot be written, the profile and account are rolled back and the
// creation fails.
func (s *Service) Create(ctx context.Context, in Input, origin audit.Origin) (*Created, error) {
	if err := s.validateInput(ctx, &in, true); err != nil {
		return nil, err
	}

	account, err := s.accounts.Create(ctx, user.CreateInput{
		Name:     in.Name,
		Username: in.Username,
		Email:    in.Email,
		Role:     user.RoleTeacher,
	}, origin)
	if err != nil {
		return nil, err
	}

	t := &Teacher{
		Name:       in.Name,
		Email:      in.Email,
		Phone:      in.Phone,
		UserID:     &account.User.ID,
		SubjectIDs: append([]string(nil), in.SubjectIDs...),
	}
	if err := s.repo.Insert(ctx, t); err != nil {
		s.rollbackAccount(ctx, account.User.ID, origin)
		return nil, err
	}

	if _, err := s.strict.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    t.ID,
		Action:      audit.ActionCreate,
		AfterState:  t.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	}); err != nil {
		if derr := s.repo.Delete(ctx, t.ID); derr != nil {
			s.logger.ErrorContext(ctx, "teacher rollback failed", "teacher_id", t.ID, "error", derr)
		}
		s.rollbackAccount(ctx, account.User.ID, origin)
		return nil, fmt.Errorf("failed to record teacher creation: %w", err)
	}

	return &Created{
		Teacher:           t,
		Account:           account.User,
		GeneratedPassword: account.GeneratedPassword,
	}, nil
}

func (s *Service) rollbackAccount(ctx context.Context, userID string, origin audit.Origin) {
	if err := s.accounts.Delete(ctx, userID, origin); err != nil {
		s.logger.ErrorContext(ctx, "account rollback failed", "user_id", userID, "error", err)
	}
}

// Update changes the profile and subject assignments and records an UPDATE
// entry best-effort. The login account is untouched.
func (s *Service) Update(ctx context.Context, id string, in Input, origin audit.Origin) (*Teacher, error) {
	if err := s.validateInput(ctx, &in, false); err != nil {
		return nil, err
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	t := &Teacher{
		ID:         id,
		Name:       in.Name,
		Email:      in.Email,
		Phone:      in.Phone,
		UserID:     before.UserID,
		SubjectIDs: append([]string(nil), in.SubjectIDs...),
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	s.best.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    id,
		Action:      audit.ActionUpdate,
		BeforeState: before.Snapshot(),
		AfterState:  t.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return t, nil
}

// Delete removes the teacher and records a DELETE entry best-effort. The
// login account is removed alongside the profile.
func (s *Service) Delete(ctx context.Context, id string, origin audit.Origin) error {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if before.UserID != nil {
		if err := s.accounts.Delete(ctx, *before.UserID, origin); err != nil {
			s.logger.WarnContext(ctx, "teacher account removal failed", "user_id", *before.UserID, "error", err)
		}
	}

	s.best.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    id,
		Action:      audit.ActionDelete,
		BeforeState: before.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return nil
}

// Get returns one teacher by ID.
func (s *Service) Get(ctx context.Context, id string) (*Teacher, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of teachers ordered by name, plus the total count.
func (s *Service) List(ctx context.Context, offset, limit int) ([]*Teacher, int, error) {
	return s.repo.List(ctx, offset, limit)
}

// TeacherName resolves a teacher ID to its current display name. It
// satisfies the class package's resolver dependency.
func (s *Service) TeacherName(ctx context.Context, id string) (string, bool) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", false
	}
	return t.Name, true
}
