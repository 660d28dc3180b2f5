package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnlive/backend/internal/models"
)

// ErrSessionNotFound is returned when no session matches the lookup.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidTransition is returned when a status change does not apply,
// e.g. starting a session that is already live.
var ErrInvalidTransition = errors.New("invalid session status transition")

// Repository persists class sessions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `id, title, COALESCE(description, ''), mentor_id, course_id, scheduled_at, duration_minutes, status, started_at, ended_at, created_at, updated_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	s := &models.Session{}
	err := row.Scan(
		&s.ID, &s.Title, &s.Description, &s.MentorID, &s.CourseID, &s.ScheduledAt,
		&s.DurationMinutes, &s.Status, &s.StartedAt, &s.EndedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

const createSessionSQL = `
INSERT INTO sessions (title, description, mentor_id, course_id, scheduled_at, duration_minutes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, status, created_at, updated_at`

// Create inserts a new scheduled session.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	return r.pool.QueryRow(ctx, createSessionSQL,
		s.Title, s.Description, s.MentorID, s.CourseID, s.ScheduledAt, s.DurationMinutes,
	).Scan(&s.ID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID looks up a session.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

const updateSessionSQL = `
UPDATE sessions SET
	title = COALESCE($2, title),
	description = COALESCE($3, description),
	scheduled_at = COALESCE($4, scheduled_at),
	duration_minutes = COALESCE($5, duration_minutes),
	updated_at = NOW()
WHERE id = $1 AND status = 'SCHEDULED'
RETURNING ` + sessionColumns

// Update patches a scheduled session; nil fields are left unchanged. Sessions
// that already started cannot be rescheduled.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, description *string, scheduledAt *time.Time, durationMinutes *int) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, updateSessionSQL,
		id, title, description, scheduledAt, durationMinutes))
}

const markLiveSQL = `
UPDATE sessions SET status = 'LIVE', started_at = NOW(), updated_at = NOW()
WHERE id = $1 AND status = 'SCHEDULED'
RETURNING ` + sessionColumns

// MarkLive transitions SCHEDULED to LIVE. The status guard in the WHERE
// clause makes concurrent starts race safely; the loser gets
// ErrInvalidTransition.
func (r *Repository) MarkLive(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, markLiveSQL, id))
	if errors.Is(err, ErrSessionNotFound) {
		return nil, r.transitionErr(ctx, id)
	}
	return s, err
}

const markEndedSQL = `
UPDATE sessions SET status = 'ENDED', ended_at = NOW(), updated_at = NOW()
WHERE id = $1 AND status = 'LIVE'
RETURNING ` + sessionColumns

// MarkEnded transitions LIVE to ENDED.
func (r *Repository) MarkEnded(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, markEndedSQL, id))
	if errors.Is(err, ErrSessionNotFound) {
		return nil, r.transitionErr(ctx, id)
	}
	return s, err
}

const markCancelledSQL = `
UPDATE sessions SET status = 'CANCELLED', updated_at = NOW()
WHERE id = $1 AND status = 'SCHEDULED'
RETURNING ` + sessionColumns

// MarkCancelled transitions SCHEDULED to CANCELLED.
func (r *Repository) MarkCancelled(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, markCancelledSQL, id))
	if errors.Is(err, ErrSessionNotFound) {
		return nil, r.transitionErr(ctx, id)
	}
	return s, err
}

const revertToScheduledSQL = `
UPDATE sessions SET status = 'SCHEDULED', started_at = NULL, updated_at = NOW()
WHERE id = $1 AND status = 'LIVE'`

// RevertToScheduled undoes MarkLive when opening the broadcast fails, so the
// mentor can retry the start.
func (r *Repository) RevertToScheduled(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, revertToScheduledSQL, id)
	return err
}

// transitionErr distinguishes a missing session from a bad status.
func (r *Repository) transitionErr(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrSessionNotFound
	}
	return ErrInvalidTransition
}

func (r *Repository) list(ctx context.Context, query string, args ...interface{}) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(
			&s.ID, &s.Title, &s.Description, &s.MentorID, &s.CourseID, &s.ScheduledAt,
			&s.DurationMinutes, &s.Status, &s.StartedAt, &s.EndedAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListByMentor returns all of a mentor's sessions, newest first.
func (r *Repository) ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]models.Session, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE mentor_id = $1 ORDER BY scheduled_at DESC`,
		mentorID)
}

const listUpcomingSQL = `
SELECT ` + sessionColumns + ` FROM sessions
WHERE status = 'SCHEDULED' AND scheduled_at > NOW() - INTERVAL '1 hour'
ORDER BY scheduled_at ASC`

// ListUpcoming returns scheduled sessions, keeping those up to an hour past
// their slot so a late mentor can still start them.
func (r *Repository) ListUpcoming(ctx context.Context) ([]models.Session, error) {
	return r.list(ctx, listUpcomingSQL)
}

// ListLive returns sessions currently on air.
func (r *Repository) ListLive(ctx context.Context) ([]models.Session, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status = 'LIVE' ORDER BY started_at DESC`)
}

// ListByCourse returns a course's sessions in schedule order.
func (r *Repository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Session, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE course_id = $1 ORDER BY scheduled_at ASC`,
		courseID)
}
