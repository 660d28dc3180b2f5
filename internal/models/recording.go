package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordingStatus represents recording lifecycle.
const (
	RecordingStatusProcessing = "processing"
	RecordingStatusCompleted  = "completed"
	RecordingStatusFailed     = "failed"
)

// Recording is a class session recording imported from the provider into S3.
type Recording struct {
	ID                  uuid.UUID `json:"id"`
	SessionID           uuid.UUID `json:"session_id"`
	ProviderRecordingID string    `json:"provider_recording_id,omitempty"`
	OriginalURL         string    `json:"original_url,omitempty"`
	S3Key               string    `json:"s3_key,omitempty"`
	DurationSeconds     int       `json:"duration_seconds"`
	FileSize            int64     `json:"file_size"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
