package recordings

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/models"
	"github.com/learnlive/backend/pkg/queue"
	"github.com/learnlive/backend/pkg/response"
	"github.com/learnlive/backend/pkg/storage"
)

// Handler serves recording endpoints and the provider webhook.
type Handler struct {
	repo   *Repository
	queue  *queue.Queue
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(repo *Repository, q *queue.Queue, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, queue: q, s3: s3, logger: logger}
}

type webhookRequest struct {
	SessionID           uuid.UUID `json:"session_id" binding:"required"`
	ProviderRecordingID string    `json:"provider_recording_id" binding:"required"`
	OriginalURL         string    `json:"original_url" binding:"required,url"`
	DurationSeconds     int       `json:"duration_seconds"`
}

// Webhook receives the provider's recording-available notification, creates
// the recording row, and queues the import job for the worker.
func (h *Handler) Webhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	rec := &models.Recording{
		SessionID:           req.SessionID,
		ProviderRecordingID: req.ProviderRecordingID,
		OriginalURL:         req.OriginalURL,
		DurationSeconds:     req.DurationSeconds,
		Status:              models.RecordingStatusProcessing,
	}
	if err := h.repo.Create(c.Request.Context(), rec); err != nil {
		h.logger.Error("create recording", zap.Error(err))
		response.Internal(c, "failed to register recording")
		return
	}

	if err := h.queue.EnqueueRecordingImport(c.Request.Context(), queue.RecordingImportPayload{
		RecordingID: rec.ID,
		SessionID:   rec.SessionID,
		OriginalURL: rec.OriginalURL,
	}); err != nil {
		h.logger.Error("enqueue recording import", zap.Error(err), zap.String("recording_id", rec.ID.String()))
		response.Internal(c, "failed to queue recording import")
		return
	}

	h.logger.Info("recording import queued",
		zap.String("recording_id", rec.ID.String()),
		zap.String("session_id", rec.SessionID.String()),
	)
	response.Created(c, rec)
}

// recordingView is a recording plus a short-lived download URL when ready.
type recordingView struct {
	models.Recording
	DownloadURL string `json:"download_url,omitempty"`
}

// ListBySession returns a session's recordings with presigned download URLs
// for the completed ones.
func (h *Handler) ListBySession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.repo.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("list recordings", zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}

	views := make([]recordingView, 0, len(list))
	for _, rec := range list {
		view := recordingView{Recording: rec}
		if rec.Status == models.RecordingStatusCompleted && rec.S3Key != "" {
			url, err := h.s3.GeneratePresignedDownloadURL(
				c.Request.Context(), h.s3.RecordingsBucket(), rec.S3Key, h.s3.PresignExpire())
			if err != nil {
				h.logger.Warn("presign download", zap.Error(err), zap.String("recording_id", rec.ID.String()))
			} else {
				view.DownloadURL = url
			}
		}
		views = append(views, view)
	}
	response.OK(c, views)
}

// Download returns a presigned URL for one completed recording.
func (h *Handler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRecordingNotFound) {
			response.NotFound(c, "recording not found")
			return
		}
		h.logger.Error("get recording", zap.Error(err))
		response.Internal(c, "failed to load recording")
		return
	}
	if rec.Status != models.RecordingStatusCompleted || rec.S3Key == "" {
		response.Conflict(c, "recording is not ready")
		return
	}
	url, err := h.s3.GeneratePresignedDownloadURL(
		c.Request.Context(), h.s3.RecordingsBucket(), rec.S3Key, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign download", zap.Error(err))
		response.Internal(c, "failed to generate download url")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in_seconds": int(h.s3.PresignExpire().Seconds())})
}
