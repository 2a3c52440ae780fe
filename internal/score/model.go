// Package score manages subject scores and the per-student averages and
// classification bands derived from them.
package score

import (
	"time"

	"github.com/openschoolhq/schooldesk/internal/audit"
)

// EntityName is the logical table name used on change records.
const EntityName = "scores"

// Score value bounds on the 10-point scale.
const (
	MinValue = 0.0
	MaxValue = 10.0
)

// Classification bands on the 10-point scale.
const (
	BandGioi      = "gioi"       // average >= 8.0
	BandKha       = "kha"        // average >= 6.5
	BandTrungBinh = "trung_binh" // average >= 5.0
	BandYeu       = "yeu"        // below 5.0
)

// Classify maps an average on the 10-point scale to its band.
func Classify(average float64) string {
	switch {
	case average >= 8.0:
		return BandGioi
	case average >= 6.5:
		return BandKha
	case average >= 5.0:
		return BandTrungBinh
	default:
		return BandYeu
	}
}

// Score is one recorded score for a student in a subject and semester.
type Score struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	SubjectID string    `json:"subject_id"`
	Semester  int       `json:"semester"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot captures the score's fields for audit history.
func (s *Score) Snapshot() audit.Snapshot {
	return audit.Snapshot{
		"id":         s.ID,
		"student_id": s.StudentID,
		"subject_id": s.SubjectID,
		"semester":   float64(s.Semester),
		"value":      s.Value,
	}
}

// Summary aggregates a student's scores for one semester.
type Summary struct {
	StudentID string   `json:"student_id"`
	Semester  int      `json:"semester"`
	Scores    []*Score `json:"scores"`
	Average   float64  `json:"average"`
	Band      string   `json:"band"`
}

// ClassSummary aggregates a whole class roster for one semester: the class
// average and how many students fall in each classification band.
type ClassSummary struct {
	ClassID      string         `json:"class_id"`
	Semester     int            `json:"semester"`
	Students     int            `json:"students"`
	Average      float64        `json:"average"`
	Distribution map[string]int `json:"distribution"`
}
