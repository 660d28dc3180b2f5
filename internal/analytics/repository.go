package analytics

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionSummary aggregates everything a mentor sees after a class ends.
type SessionSummary struct {
	SessionID        uuid.UUID `json:"session_id"`
	UniqueViewers    int       `json:"unique_viewers"`
	TotalJoins       int       `json:"total_joins"`
	AvgWatchSeconds  int64     `json:"avg_watch_seconds"`
	PeakViewers      int       `json:"peak_viewers"`
	QuizCount        int       `json:"quiz_count"`
	QuizParticipants int       `json:"quiz_participants"`
}

// MentorOverview aggregates a mentor's activity across all sessions.
type MentorOverview struct {
	TotalSessions  int `json:"total_sessions"`
	LiveSessions   int `json:"live_sessions"`
	EndedSessions  int `json:"ended_sessions"`
	TotalCourses   int `json:"total_courses"`
	TotalStudents  int `json:"total_students"`
	UniqueAttended int `json:"unique_attended"`
}

// Repository runs analytics aggregations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionSummarySQL = `
SELECT
	(SELECT COUNT(DISTINCT user_id) FROM attendance_logs WHERE session_id = $1),
	(SELECT COUNT(*) FROM attendance_logs WHERE session_id = $1),
	(SELECT COALESCE(AVG(watch_seconds), 0)::BIGINT FROM attendance_logs WHERE session_id = $1 AND watch_seconds > 0),
	(SELECT COALESCE(MAX(peak_viewers), 0) FROM live_streams WHERE session_id = $1),
	(SELECT COUNT(*) FROM quizzes WHERE session_id = $1),
	(SELECT COUNT(DISTINCT a.user_id) FROM quiz_answers a JOIN quizzes q ON q.id = a.quiz_id WHERE q.session_id = $1)`

// SessionSummary aggregates attendance, streaming, and quiz numbers for one
// session.
func (r *Repository) SessionSummary(ctx context.Context, sessionID uuid.UUID) (*SessionSummary, error) {
	s := &SessionSummary{SessionID: sessionID}
	err := r.pool.QueryRow(ctx, sessionSummarySQL, sessionID).Scan(
		&s.UniqueViewers, &s.TotalJoins, &s.AvgWatchSeconds,
		&s.PeakViewers, &s.QuizCount, &s.QuizParticipants,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

const mentorOverviewSQL = `
SELECT
	(SELECT COUNT(*) FROM sessions WHERE mentor_id = $1),
	(SELECT COUNT(*) FROM sessions WHERE mentor_id = $1 AND status = 'LIVE'),
	(SELECT COUNT(*) FROM sessions WHERE mentor_id = $1 AND status = 'ENDED'),
	(SELECT COUNT(*) FROM courses WHERE mentor_id = $1),
	(SELECT COUNT(DISTINCT e.student_id) FROM enrollments e JOIN courses c ON c.id = e.course_id WHERE c.mentor_id = $1),
	(SELECT COUNT(DISTINCT a.user_id) FROM attendance_logs a JOIN sessions s ON s.id = a.session_id WHERE s.mentor_id = $1)`

// MentorOverview aggregates a mentor's activity for the dashboard.
func (r *Repository) MentorOverview(ctx context.Context, mentorID uuid.UUID) (*MentorOverview, error) {
	o := &MentorOverview{}
	err := r.pool.QueryRow(ctx, mentorOverviewSQL, mentorID).Scan(
		&o.TotalSessions, &o.LiveSessions, &o.EndedSessions,
		&o.TotalCourses, &o.TotalStudents, &o.UniqueAttended,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}
