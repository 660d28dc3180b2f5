package attendance

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnlive/backend/internal/models"
)

// Repository persists attendance logs. It implements the realtime hub's
// attendance logger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const logJoinSQL = `
INSERT INTO attendance_logs (session_id, user_id, joined_at)
VALUES ($1, $2, NOW())`

// LogJoin records a viewer entering a session room.
func (r *Repository) LogJoin(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, logJoinSQL, sessionID, userID)
	return err
}

const logLeaveSQL = `
UPDATE attendance_logs
SET left_at = NOW(),
    watch_seconds = EXTRACT(EPOCH FROM (NOW() - joined_at))::BIGINT
WHERE id = (
	SELECT id FROM attendance_logs
	WHERE session_id = $1 AND user_id = $2 AND left_at IS NULL
	ORDER BY joined_at DESC
	LIMIT 1
)`

// LogLeave closes the viewer's most recent open attendance entry. Leaving
// without an open entry is not an error.
func (r *Repository) LogLeave(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, logLeaveSQL, sessionID, userID)
	return err
}

// Attendee is one viewer's aggregated attendance in a session.
type Attendee struct {
	UserID       uuid.UUID `json:"user_id"`
	FullName     string    `json:"full_name"`
	Joins        int       `json:"joins"`
	WatchSeconds int64     `json:"watch_seconds"`
}

const listAttendeesSQL = `
SELECT a.user_id, u.full_name, COUNT(*),
       COALESCE(SUM(CASE WHEN a.left_at IS NULL THEN EXTRACT(EPOCH FROM (NOW() - a.joined_at))::BIGINT ELSE a.watch_seconds END), 0)
FROM attendance_logs a
JOIN users u ON u.id = a.user_id
WHERE a.session_id = $1
GROUP BY a.user_id, u.full_name
ORDER BY 4 DESC`

// ListAttendees returns per-viewer attendance for a session. Open entries
// count watch time up to now.
func (r *Repository) ListAttendees(ctx context.Context, sessionID uuid.UUID) ([]Attendee, error) {
	rows, err := r.pool.Query(ctx, listAttendeesSQL, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attendee
	for rows.Next() {
		var a Attendee
		if err := rows.Scan(&a.UserID, &a.FullName, &a.Joins, &a.WatchSeconds); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// History returns a user's own attendance entries, newest first.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.AttendanceLog, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, session_id, user_id, joined_at, left_at, watch_seconds, created_at
FROM attendance_logs
WHERE user_id = $1
ORDER BY joined_at DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AttendanceLog
	for rows.Next() {
		var l models.AttendanceLog
		if err := rows.Scan(&l.ID, &l.SessionID, &l.UserID, &l.JoinedAt, &l.LeftAt, &l.WatchSeconds, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
