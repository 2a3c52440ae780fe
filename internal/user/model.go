// Package user manages login accounts: admins, teachers and staff. It also
// resolves actor identities for the change history read path.
package user

import (
	"time"

	"github.com/openschoolhq/schooldesk/internal/audit"
)

// EntityName is the logical table name used on change records.
const EntityName = "users"

// Account roles.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStaff   = "staff"
)

// ValidRole reports whether role is one of the known account roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleTeacher || role == RoleStaff
}

// User is one login account. PasswordHash is a bcrypt hash and never leaves
// the service unredacted.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot captures the account's fields for audit history. The hash is
// stored under "password" and masked at read time by the history service.
func (u *User) Snapshot() audit.Snapshot {
	return audit.Snapshot{
		"id":       u.ID,
		"name":     u.Name,
		"username": u.Username,
		"email":    u.Email,
		"role":     u.Role,
		"password": u.PasswordHash,
	}
}
