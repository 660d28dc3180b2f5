package streaming

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnlive/backend/internal/models"
)

// ErrChannelNotFound is returned when a mentor has no provisioned channel.
var ErrChannelNotFound = errors.New("mentor channel not found")

// ErrStreamNotFound is returned when a session has no active live stream.
var ErrStreamNotFound = errors.New("live stream not found")

// Repository persists mentor channels and live streams.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const getChannelByMentorSQL = `
SELECT id, mentor_id, channel_arn, ingest_endpoint, playback_url, stream_key, created_at
FROM mentor_channels WHERE mentor_id = $1`

// GetChannelByMentor returns the mentor's permanent channel.
func (r *Repository) GetChannelByMentor(ctx context.Context, mentorID uuid.UUID) (*models.MentorChannel, error) {
	ch := &models.MentorChannel{}
	err := r.pool.QueryRow(ctx, getChannelByMentorSQL, mentorID).Scan(
		&ch.ID, &ch.MentorID, &ch.ChannelARN, &ch.IngestEndpoint, &ch.PlaybackURL, &ch.StreamKey, &ch.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

const createChannelSQL = `
INSERT INTO mentor_channels (mentor_id, channel_arn, ingest_endpoint, playback_url, stream_key)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (mentor_id) DO NOTHING
RETURNING id, created_at`

// CreateChannel persists a freshly provisioned channel. If another request
// won the race, the existing row is returned instead.
func (r *Repository) CreateChannel(ctx context.Context, ch *models.MentorChannel) (*models.MentorChannel, error) {
	err := r.pool.QueryRow(ctx, createChannelSQL,
		ch.MentorID, ch.ChannelARN, ch.IngestEndpoint, ch.PlaybackURL, ch.StreamKey,
	).Scan(&ch.ID, &ch.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.GetChannelByMentor(ctx, ch.MentorID)
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

const createLiveStreamSQL = `
INSERT INTO live_streams (session_id, channel_arn, ingest_endpoint, playback_url, status, started_at)
VALUES ($1, $2, $3, $4, $5, NOW())
RETURNING id, started_at, created_at, updated_at`

// CreateLiveStream opens a broadcast row for a session. The partial unique
// index on active streams rejects a second open stream for the same session.
func (r *Repository) CreateLiveStream(ctx context.Context, ls *models.LiveStream) error {
	return r.pool.QueryRow(ctx, createLiveStreamSQL,
		ls.SessionID, ls.ChannelARN, ls.IngestEndpoint, ls.PlaybackURL, ls.Status,
	).Scan(&ls.ID, &ls.StartedAt, &ls.CreatedAt, &ls.UpdatedAt)
}

const getActiveStreamSQL = `
SELECT id, session_id, channel_arn, ingest_endpoint, playback_url, status, peak_viewers, started_at, ended_at, created_at, updated_at
FROM live_streams WHERE session_id = $1 AND ended_at IS NULL`

// GetActiveStream returns the session's open broadcast.
func (r *Repository) GetActiveStream(ctx context.Context, sessionID uuid.UUID) (*models.LiveStream, error) {
	ls := &models.LiveStream{}
	err := r.pool.QueryRow(ctx, getActiveStreamSQL, sessionID).Scan(
		&ls.ID, &ls.SessionID, &ls.ChannelARN, &ls.IngestEndpoint, &ls.PlaybackURL,
		&ls.Status, &ls.PeakViewers, &ls.StartedAt, &ls.EndedAt, &ls.CreatedAt, &ls.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStreamNotFound
	}
	if err != nil {
		return nil, err
	}
	return ls, nil
}

const markStreamLiveSQL = `
UPDATE live_streams SET status = 'LIVE', updated_at = NOW()
WHERE session_id = $1 AND ended_at IS NULL AND status = 'CREATED'`

// MarkStreamLive flips the broadcast to LIVE once ingest is detected.
func (r *Repository) MarkStreamLive(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, markStreamLiveSQL, sessionID)
	return err
}

const endLiveStreamSQL = `
UPDATE live_streams SET status = 'ENDED', ended_at = NOW(), updated_at = NOW()
WHERE session_id = $1 AND ended_at IS NULL`

// EndLiveStream closes the session's open broadcast. Ending a session with no
// open broadcast is not an error.
func (r *Repository) EndLiveStream(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, endLiveStreamSQL, sessionID)
	return err
}

const updatePeakViewersSQL = `
UPDATE live_streams SET peak_viewers = GREATEST(peak_viewers, $2), updated_at = NOW()
WHERE session_id = $1 AND ended_at IS NULL`

// UpdatePeakViewers raises the recorded peak if the new count is higher.
func (r *Repository) UpdatePeakViewers(ctx context.Context, sessionID uuid.UUID, viewers int) error {
	_, err := r.pool.Exec(ctx, updatePeakViewersSQL, sessionID, viewers)
	return err
}

const listActiveStreamsSQL = `
SELECT id, session_id, channel_arn, ingest_endpoint, playback_url, status, peak_viewers, started_at, ended_at, created_at, updated_at
FROM live_streams WHERE ended_at IS NULL ORDER BY started_at DESC`

// ListActiveStreams returns all open broadcasts.
func (r *Repository) ListActiveStreams(ctx context.Context) ([]models.LiveStream, error) {
	rows, err := r.pool.Query(ctx, listActiveStreamsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var streams []models.LiveStream
	for rows.Next() {
		var ls models.LiveStream
		if err := rows.Scan(
			&ls.ID, &ls.SessionID, &ls.ChannelARN, &ls.IngestEndpoint, &ls.PlaybackURL,
			&ls.Status, &ls.PeakViewers, &ls.StartedAt, &ls.EndedAt, &ls.CreatedAt, &ls.UpdatedAt,
		); err != nil {
			return nil, err
		}
		streams = append(streams, ls)
	}
	return streams, rows.Err()
}
