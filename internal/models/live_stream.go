package models

import (
	"time"

	"github.com/google/uuid"
)

// LiveStreamStatus represents the provider-side stream lifecycle.
type LiveStreamStatus string

const (
	LiveStreamCreated LiveStreamStatus = "CREATED"
	LiveStreamLive    LiveStreamStatus = "LIVE"
	LiveStreamEnded   LiveStreamStatus = "ENDED"
)

// LiveStream is the broadcast tied to a session while it is live.
// A session has at most one active LiveStream.
type LiveStream struct {
	ID             uuid.UUID        `json:"id"`
	SessionID      uuid.UUID        `json:"session_id"`
	ChannelARN     string           `json:"channel_arn"`
	IngestEndpoint string           `json:"ingest_endpoint"`
	PlaybackURL    string           `json:"playback_url"`
	Status         LiveStreamStatus `json:"status"`
	PeakViewers    int              `json:"peak_viewers"`
	StartedAt      time.Time        `json:"started_at"`
	EndedAt        *time.Time       `json:"ended_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// MentorChannel is a mentor's permanent streaming ingest identity, reused
// across class sessions. The stream key is issued once at provisioning.
type MentorChannel struct {
	ID             uuid.UUID `json:"id"`
	MentorID       uuid.UUID `json:"mentor_id"`
	ChannelARN     string    `json:"channel_arn"`
	IngestEndpoint string    `json:"ingest_endpoint"`
	PlaybackURL    string    `json:"playback_url"`
	StreamKey      string    `json:"stream_key"`
	CreatedAt      time.Time `json:"created_at"`
}
