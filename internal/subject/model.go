// Package subject provides the model, repository and service for school
// subjects.
package subject

import (
	"time"

	"github.com/openschoolhq/schooldesk/internal/audit"
)

// EntityName is the logical table name used on change records.
const EntityName = "subjects"

// Subject is one teachable subject (e.g. "Toán", "Ngữ văn").
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot captures the subject's fields for audit history. Subject
// snapshots are flat by design.
func (s *Subject) Snapshot() audit.Snapshot {
	return audit.Snapshot{
		"id":   s.ID,
		"name": s.Name,
		"code": s.Code,
	}
}
