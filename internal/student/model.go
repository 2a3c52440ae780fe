// Package student provides the model, repository and service for enrolled
// students.
package student

import (
	"time"

	"github.com/openschoolhq/schooldesk/internal/audit"
)

// EntityName is the logical table name used on change records.
const EntityName = "students"

// Genders accepted on student records.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// ValidGender reports whether g is one of the accepted genders.
func ValidGender(g string) bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

// Student is one enrolled student, always attached to a class.
type Student struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DateOfBirth string    `json:"date_of_birth"`
	Gender      string    `json:"gender"`
	ClassID     string    `json:"class_id"`
	Address     string    `json:"address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot captures the student's fields for audit history. The class is
// stored by ID; the read path resolves it to the class's current name.
func (s *Student) Snapshot() audit.Snapshot {
	return audit.Snapshot{
		"id":            s.ID,
		"name":          s.Name,
		"date_of_birth": s.DateOfBirth,
		"gender":        s.Gender,
		"class_id":      s.ClassID,
		"address":       s.Address,
	}
}
