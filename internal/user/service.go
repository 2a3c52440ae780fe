package user

import (
	"context"
	"errors"

	"github.com/openschoolhq/schooldesk/internal/audit"
	"github.com/openschoolhq/schooldesk/internal/auth"
	"github.com/openschoolhq/schooldesk/internal/validate"
)

// ErrInvalidCredentials is returned when a login attempt fails. The caller
// cannot tell a missing account from a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// CreateInput is the payload for account creation. Passwords are never
// accepted from the client: the service generates one and returns it once.
type CreateInput struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// UpdateInput is the mutable part of an account on update.
type UpdateInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Created pairs a stored account with its one-time generated password. The
// plaintext exists here and on the CREATE change record only.
type Created struct {
	User              *User  `json:"user"`
	GeneratedPassword string `json:"generated_password"`
}

// Service coordinates account mutations with change recording.
type Service struct {
	repo       Repository
	recorder   audit.Recorder
	bcryptCost int
}

// NewService creates a user service. cost <= 0 falls back to the default
// bcrypt cost.
func NewService(repo Repository, recorder audit.Recorder, cost int) *Service {
	if cost <= 0 {
		cost = auth.DefaultBcryptCost
	}
	return &Service{repo: repo, recorder: recorder, bcryptCost: cost}
}

func validateCreate(in *CreateInput) error {
	fe := validate.FieldErrors{}
	if name, err := validate.String(in.Name, validate.NameConstraints); err != nil {
		fe.Add("name", "name is required and must be at most 120 characters")
	} else {
		in.Name = name
	}
	if username, err := validate.String(in.Username, validate.UsernameConstraints); err != nil {
		fe.Add("username", "username must be 3-64 characters of letters, digits, dot, dash or underscore")
	} else {
		in.Username = username
	}
	if email, err := validate.Email(in.Email); err != nil {
		fe.Add("email", "a valid email address is required")
	} else {
		in.Email = email
	}
	if !ValidRole(in.Role) {
		fe.Add("role", "role must be admin, teacher or staff")
	}
	return fe.OrNil()
}

// Create validates the input, generates and hashes a password, stores the
// account and records a CREATE entry. The generated plaintext is included on
// the change record under generated_password: the history service keeps it
// visible on CREATE records only, which is the one-time retrieval channel.
func (s *Service) Create(ctx context.Context, in CreateInput, origin audit.Origin) (*Created, error) {
	if err := validateCreate(&in); err != nil {
		return nil, err
	}

	plaintext, err := auth.GeneratePassword()
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(plaintext, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: hash,
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return nil, err
	}

	after := u.Snapshot()
	after["generated_password"] = plaintext
	s.recorder.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    u.ID,
		Action:      audit.ActionCreate,
		AfterState:  after,
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return &Created{User: u, GeneratedPassword: plaintext}, nil
}

// Update changes the account's profile fields. Username and password are
// immutable here; password changes go through ResetPassword.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput, origin audit.Origin) (*User, error) {
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
	if !ValidRole(in.Role) {
		fe.Add("role", "role must be admin, teacher or staff")
	}
	if err := fe.OrNil(); err != nil {
		return nil, err
	}

	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           id,
		Name:         in.Name,
		Username:     before.Username,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: before.PasswordHash,
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    id,
		Action:      audit.ActionUpdate,
		BeforeState: before.Snapshot(),
		AfterState:  u.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return u, nil
}

// ResetPassword replaces the account's password with a newly generated one
// and returns the plaintext once. The change record stores both hashes under
// "password", which the read path masks.
func (s *Service) ResetPassword(ctx context.Context, id string, origin audit.Origin) (*Created, error) {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	plaintext, err := auth.GeneratePassword()
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(plaintext, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	u := *before
	u.PasswordHash = hash
	if err := s.repo.Update(ctx, &u); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityName:  EntityName,
		EntityID:    id,
		Action:      audit.ActionUpdate,
		BeforeState: before.Snapshot(),
		AfterState:  u.Snapshot(),
		ClientIP:    origin.IP,
		ClientAgent: origin.Agent,
	})
	return &Created{User: &u, GeneratedPassword: plaintext}, nil
}

// Delete removes the account and records a DELETE entry. History rows
// referencing the account remain; actor resolution degrades to ID-only.
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

// Get returns one account by ID.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of accounts ordered by username, plus the total count.
func (s *Service) List(ctx context.Context, offset, limit int) ([]*User, int, error) {
	return s.repo.List(ctx, offset, limit)
}

// Authenticate verifies a username/password pair and returns the account.
// Both unknown usernames and wrong passwords yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
