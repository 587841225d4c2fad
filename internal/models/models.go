// Package models defines the core data structures for IntakeBot.
//
// It includes form kinds, user records, finalized forms and the event types
// shared between the transport adapters and the bot core.
package models

import (
	"errors"
	"time"
)

// FormKind identifies one of the closed set of submittable request kinds.
type FormKind string

const (
	// FormKindDelivery is a material delivery request.
	FormKindDelivery FormKind = "delivery"
	// FormKindRefund is a material return request.
	FormKindRefund FormKind = "refund"
	// FormKindPainting is a painting service request.
	FormKindPainting FormKind = "painting"
	// FormKindCheckin is a crew check-in request.
	FormKindCheckin FormKind = "checkin"
)

// FormKinds lists all valid form kinds in menu order.
var FormKinds = []FormKind{FormKindDelivery, FormKindCheckin, FormKindRefund, FormKindPainting}

// IsValidFormKind checks if the given form kind is supported.
func IsValidFormKind(k FormKind) bool {
	switch k {
	case FormKindDelivery, FormKindRefund, FormKindPainting, FormKindCheckin:
		return true
	default:
		return false
	}
}

// ParseFormKind decodes a form kind from its wire representation.
// Unknown values return an error so transport adapters fail at the boundary.
func ParseFormKind(s string) (FormKind, error) {
	k := FormKind(s)
	if !IsValidFormKind(k) {
		return "", ErrUnknownFormKind
	}
	return k, nil
}

// Error variables for expected failure conditions.
var (
	ErrUnknownFormKind = errors.New("unknown form kind")
	ErrFormNotFound    = errors.New("form not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNoActiveSession = errors.New("no active form session")
)

// UserSettings holds per-user bot preferences.
type UserSettings struct {
	AutoNumbering bool `json:"auto_numbering"`
}

// User represents a registered (or pending) bot user.
type User struct {
	ID         string       `json:"user_id"`
	Username   string       `json:"username,omitempty"`
	FullName   string       `json:"fullname"`
	Phone      string       `json:"phone"`
	Position   string       `json:"position"`
	Department string       `json:"department"`
	Approved   bool         `json:"approved"`
	Admin      bool         `json:"admin"`
	Settings   UserSettings `json:"settings"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Form is a finalized form submission. It is immutable once built: the
// sequence number is allocated exactly once per logical submission and stays
// stable across delivery retries.
type Form struct {
	ID              int64             `json:"id,omitempty"`
	Kind            FormKind          `json:"kind"`
	Number          int               `json:"number"`
	UserID          string            `json:"user_id"`
	CreatorFullName string            `json:"creator_fullname"`
	Values          map[string]string `json:"values"`
	CreatedAt       time.Time         `json:"created_at"`
}

// UsageStats summarizes stored users and forms for the admin panel.
type UsageStats struct {
	TotalUsers    int              `json:"total_users"`
	ApprovedUsers int              `json:"approved_users"`
	AdminUsers    int              `json:"admin_users"`
	TotalForms    int              `json:"total_forms"`
	FormsByKind   map[FormKind]int `json:"forms_by_kind"`
}
