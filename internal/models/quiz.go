package models

import (
	"time"

	"github.com/google/uuid"
)

// Quiz is a timed multiple-choice question attached to a class session.
type Quiz struct {
	ID            uuid.UUID  `json:"id"`
	SessionID     uuid.UUID  `json:"session_id"`
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correct_answer"`
	Points        int        `json:"points"`
	StartsAt      *time.Time `json:"starts_at,omitempty"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
	Launched      bool       `json:"launched"`
	Closed        bool       `json:"closed"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Valid reports whether the quiz definition is well formed: at least two
// options and a correct answer that indexes into them.
func (q *Quiz) Valid() bool {
	return len(q.Options) >= 2 && q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options)
}

// AcceptsAnswers reports whether an answer at t is within the quiz window.
func (q *Quiz) AcceptsAnswers(t time.Time) bool {
	if !q.Launched || q.Closed {
		return false
	}
	if q.StartsAt != nil && t.Before(*q.StartsAt) {
		return false
	}
	if q.EndsAt != nil && t.After(*q.EndsAt) {
		return false
	}
	return true
}

// QuizAnswer is a student's answer to a quiz (one per user).
type QuizAnswer struct {
	QuizID        uuid.UUID `json:"quiz_id"`
	UserID        uuid.UUID `json:"user_id"`
	Answer        int       `json:"answer"`
	Correct       bool      `json:"correct"`
	PointsAwarded int       `json:"points_awarded"`
	AnsweredAt    time.Time `json:"answered_at"`
}
