// Package models defines session structures for form collection flows.
package models

import "time"

// SessionPhase represents where a user is in the fill/confirm/edit cycle.
type SessionPhase string

const (
	// PhaseCollecting means the next unfilled field is being prompted.
	PhaseCollecting SessionPhase = "collecting"
	// PhaseConfirming means all fields are filled and the summary is shown.
	PhaseConfirming SessionPhase = "confirming"
	// PhaseEditing means one already-collected field is being revised.
	PhaseEditing SessionPhase = "editing"
)

// Session is the transient per-user state of one in-progress form submission.
// It is created when the user picks a form kind, mutated on every accepted
// input, and destroyed on confirm, cancel or expiry.
type Session struct {
	UserID    string            `json:"user_id"`
	Kind      FormKind          `json:"kind"`
	Values    map[string]string `json:"values"`
	Index     int               `json:"index"` // next unfilled field position
	Phase     SessionPhase      `json:"phase"`
	EditField string            `json:"edit_field,omitempty"` // field being revised in PhaseEditing
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
