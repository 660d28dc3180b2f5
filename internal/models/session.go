package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the class session lifecycle.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "SCHEDULED"
	SessionLive      SessionStatus = "LIVE"
	SessionEnded     SessionStatus = "ENDED"
	SessionCancelled SessionStatus = "CANCELLED"
)

// UpcomingGrace is how far past the scheduled time a session still counts as
// upcoming (a late mentor can still start it).
const UpcomingGrace = time.Hour

// Session is a scheduled or live class instance (distinct from an auth session).
type Session struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	MentorID        uuid.UUID     `json:"mentor_id"`
	CourseID        *uuid.UUID    `json:"course_id,omitempty"`
	ScheduledAt     time.Time     `json:"scheduled_at"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          SessionStatus `json:"status"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	LiveStream      *LiveStream   `json:"live_stream,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// CanStart reports whether the session may transition to LIVE.
func (s *Session) CanStart() bool {
	return s.Status == SessionScheduled
}

// CanEnd reports whether the session may transition to ENDED.
func (s *Session) CanEnd() bool {
	return s.Status == SessionLive
}

// CanCancel reports whether the session may transition to CANCELLED.
func (s *Session) CanCancel() bool {
	return s.Status == SessionScheduled
}

// IsUpcoming reports whether the session belongs in the upcoming list:
// still SCHEDULED and not more than UpcomingGrace past its scheduled time.
func (s *Session) IsUpcoming(now time.Time) bool {
	return s.Status == SessionScheduled && s.ScheduledAt.After(now.Add(-UpcomingGrace))
}
