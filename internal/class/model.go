// Package class provides the model, repository and service for homeroom
// classes.
package class

import (
	"time"

	"github.com/openschoolhq/schooldesk/internal/audit"
)

// EntityName is the logical table name used on change records.
const EntityName = "classes"

// Grade bounds for this school level.
const (
	MinGrade = 6
	MaxGrade = 12
)

// Class is one homeroom class for one school year. TeacherID is the
// homeroom teacher and may be unassigned.
type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Grade     int       `json:"grade"`
	Year      string    `json:"year"`
	TeacherID *string   `json:"teacher_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot captures the class's fields for audit history. The homeroom
// teacher is stored by ID; the read path resolves it to a display name in
// its current state.
func (c *Class) Snapshot() audit.Snapshot {
	s := audit.Snapshot{
		"id":    c.ID,
		"name":  c.Name,
		"grade": float64(c.Grade),
		"year":  c.Year,
	}
	if c.TeacherID != nil {
		s["teacher_id"] = *c.TeacherID
	} else {
		s["teacher_id"] = nil
	}
	return s
}
