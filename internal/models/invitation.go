package models

import (
	"time"

	"github.com/google/uuid"
)

// MentorInvitation is an admin-issued invitation to join as a mentor.
type MentorInvitation struct {
	ID         uuid.UUID  `json:"id"`
	Email      string     `json:"email"`
	Token      string     `json:"token"`
	InvitedBy  uuid.UUID  `json:"invited_by"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Usable reports whether the invitation can still be accepted at t.
func (i *MentorInvitation) Usable(t time.Time) bool {
	return i.AcceptedAt == nil && t.Before(i.ExpiresAt)
}
