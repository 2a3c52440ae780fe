// Package teacher manages teaching staff: profile, login account and
// subject assignments.
package teacher

import (
	"time"

	"github.com/openschoolhq/schooldesk/internal/audit"
)

// EntityName is the logical table name used on change records.
const EntityName = "teachers"

// Teacher is one member of teaching staff. UserID links the login account
// created alongside the profile; SubjectIDs are the subjects this teacher
// is assigned to teach.
type Teacher struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	UserID     *string   `json:"user_id,omitempty"`
	SubjectIDs []string  `json:"subject_ids"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot captures the teacher's fields for audit history. Unlike the flat
// entities, teacher snapshots nest the subject assignments as an array of
// objects.
func (t *Teacher) Snapshot() audit.Snapshot {
	subjects := make([]any, len(t.SubjectIDs))
	for i, id := range t.SubjectIDs {
		subjects[i] = map[string]any{"subject_id": id}
	}
	s := audit.Snapshot{
		"id":       t.ID,
		"name":     t.Name,
		"email":    t.Email,
		"phone":    t.Phone,
		"subjects": subjects,
	}
	if t.UserID != nil {
		s["user_id"] = *t.UserID
	} else {
		s["user_id"] = nil
	}
	return s
}
