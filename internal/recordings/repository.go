package recordings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnlive/backend/internal/models"
)

// ErrRecordingNotFound is returned when no recording matches the lookup.
var ErrRecordingNotFound = errors.New("recording not found")

// Repository persists recordings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordingColumns = `id, session_id, COALESCE(provider_recording_id, ''), COALESCE(original_url, ''), COALESCE(s3_key, ''), duration_seconds, file_size, status, created_at, updated_at`

const createRecordingSQL = `
INSERT INTO recordings (session_id, provider_recording_id, original_url, duration_seconds, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`

// Create inserts a recording in processing state.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	return r.pool.QueryRow(ctx, createRecordingSQL,
		rec.SessionID, rec.ProviderRecordingID, rec.OriginalURL, rec.DurationSeconds, rec.Status,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	rec := &models.Recording{}
	err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.ProviderRecordingID, &rec.OriginalURL, &rec.S3Key,
		&rec.DurationSeconds, &rec.FileSize, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordingNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByID looks up a recording.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	return scanRecording(r.pool.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE id = $1`, id))
}

// ListBySession returns a session's recordings, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Recording, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE session_id = $1 ORDER BY created_at DESC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Recording
	for rows.Next() {
		var rec models.Recording
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.ProviderRecordingID, &rec.OriginalURL, &rec.S3Key,
			&rec.DurationSeconds, &rec.FileSize, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const markCompletedSQL = `
UPDATE recordings SET status = $2, s3_key = $3, file_size = $4, updated_at = NOW()
WHERE id = $1`

// MarkCompleted records a successful import into S3.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, s3Key string, fileSize int64) error {
	_, err := r.pool.Exec(ctx, markCompletedSQL, id, models.RecordingStatusCompleted, s3Key, fileSize)
	return err
}

const markFailedSQL = `
UPDATE recordings SET status = $2, updated_at = NOW() WHERE id = $1`

// MarkFailed records a permanently failed import.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, markFailedSQL, id, models.RecordingStatusFailed)
	return err
}
