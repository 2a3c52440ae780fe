// Package audit records create/update/delete transitions on tracked entities
// and reconstructs human-readable change history for the API.
package audit

import (
	"errors"
	"time"
)

// Action is the closed set of recorded change kinds.
type Action string

const (
	// ActionCreate marks the insertion of a new entity row.
	ActionCreate Action = "CREATE"
	// ActionUpdate marks a modification of an existing entity row.
	ActionUpdate Action = "UPDATE"
	// ActionDelete marks the removal of an entity row.
	ActionDelete Action = "DELETE"
)

// Valid reports whether a is one of the three permitted actions.
func (a Action) Valid() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// Snapshot is a structured capture of an entity's fields at a point in time.
// Shapes are heterogeneous by design: teacher snapshots carry nested subject
// assignment arrays while subject snapshots are flat.
type Snapshot map[string]any

// ChangeRecord is one immutable row capturing a single transition on a
// tracked entity. Records are never updated and never deleted alongside the
// entity they describe; EntityID may reference a row that no longer exists.
type ChangeRecord struct {
	ID          int64     `json:"id"`
	EntityName  string    `json:"table_name"`
	EntityID    string    `json:"record_id"`
	Action      Action    `json:"action_type"`
	ActorID     *string   `json:"user_id,omitempty"`
	BeforeState Snapshot  `json:"before_state,omitempty"`
	AfterState  Snapshot  `json:"after_state,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	ClientAgent string    `json:"client_agent,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Entry is the input for recording a change. ActorID is nil for
// unauthenticated or system-initiated mutations.
type Entry struct {
	EntityName  string
	EntityID    string
	Action      Action
	ActorID     *string
	BeforeState Snapshot
	AfterState  Snapshot
	ClientIP    string
	ClientAgent string
}

// Validation errors for change entries.
var (
	ErrInvalidEntityName = errors.New("entity name cannot be empty")
	ErrInvalidEntityID   = errors.New("entity id cannot be empty")
	ErrInvalidAction     = errors.New("action must be CREATE, UPDATE or DELETE")
	ErrStateMismatch     = errors.New("before/after states are inconsistent with action")
)

// Validate checks the entry against the state/action invariants:
// CREATE requires a nil before state, DELETE a nil after state, and
// UPDATE both states present.
func (e Entry) Validate() error {
	if e.EntityName == "" {
		return ErrInvalidEntityName
	}
	if e.EntityID == "" {
		return ErrInvalidEntityID
	}
	if !e.Action.Valid() {
		return ErrInvalidAction
	}
	switch e.Action {
	case ActionCreate:
		if e.BeforeState != nil || e.AfterState == nil {
			return ErrStateMismatch
		}
	case ActionUpdate:
		if e.BeforeState == nil || e.AfterState == nil {
			return ErrStateMismatch
		}
	case ActionDelete:
		if e.BeforeState == nil || e.AfterState != nil {
			return ErrStateMismatch
		}
	}
	return nil
}
