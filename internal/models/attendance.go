package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceLog tracks join/leave and watch duration per viewer in a session.
type AttendanceLog struct {
	ID           uuid.UUID  `json:"id"`
	SessionID    uuid.UUID  `json:"session_id"`
	UserID       uuid.UUID  `json:"user_id"`
	JoinedAt     time.Time  `json:"joined_at"`
	LeftAt       *time.Time `json:"left_at,omitempty"`
	WatchSeconds int64      `json:"watch_seconds"`
	CreatedAt    time.Time  `json:"created_at"`
}
