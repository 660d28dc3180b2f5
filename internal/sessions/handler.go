package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/middleware"
	"github.com/learnlive/backend/internal/models"
	"github.com/learnlive/backend/pkg/response"
)

// Store is the session persistence surface the handler needs. Satisfied by
// *Repository.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Update(ctx context.Context, id uuid.UUID, title, description *string, scheduledAt *time.Time, durationMinutes *int) (*models.Session, error)
	MarkLive(ctx context.Context, id uuid.UUID) (*models.Session, error)
	MarkEnded(ctx context.Context, id uuid.UUID) (*models.Session, error)
	MarkCancelled(ctx context.Context, id uuid.UUID) (*models.Session, error)
	RevertToScheduled(ctx context.Context, id uuid.UUID) error
	ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]models.Session, error)
	ListUpcoming(ctx context.Context) ([]models.Session, error)
	ListLive(ctx context.Context) ([]models.Session, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Session, error)
}

// BroadcastControl opens and closes the streaming side of a class. Satisfied
// by *streaming.Service.
type BroadcastControl interface {
	StartBroadcast(ctx context.Context, sessionID, mentorID uuid.UUID) (*models.LiveStream, *models.MentorChannel, error)
	StopBroadcast(ctx context.Context, sessionID uuid.UUID) error
}

// MonitorControl starts and stops per-session status monitors. Satisfied by
// *streaming.MonitorRegistry.
type MonitorControl interface {
	Start(sessionID uuid.UUID, channelARN string)
	Stop(sessionID uuid.UUID)
}

// Broadcaster pushes events to the session's realtime room. Satisfied by
// *realtime.Hub.
type Broadcaster interface {
	BroadcastAndPublish(sessionID uuid.UUID, event string, data interface{})
}

// Handler serves session endpoints.
type Handler struct {
	store     Store
	streaming BroadcastControl
	monitors  MonitorControl
	hub       Broadcaster
	logger    *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(store Store, streaming BroadcastControl, monitors MonitorControl, hub Broadcaster, logger *zap.Logger) *Handler {
	return &Handler{store: store, streaming: streaming, monitors: monitors, hub: hub, logger: logger}
}

type createSessionRequest struct {
	Title           string     `json:"title" binding:"required"`
	Description     string     `json:"description"`
	CourseID        *uuid.UUID `json:"course_id"`
	ScheduledAt     time.Time  `json:"scheduled_at" binding:"required"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=5,max=480"`
}

// Create schedules a new class session for the authenticated mentor.
func (h *Handler) Create(c *gin.Context) {
	mentorID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.ScheduledAt.Before(time.Now()) {
		response.BadRequest(c, "scheduled_at must be in the future")
		return
	}

	s := &models.Session{
		Title:           req.Title,
		Description:     req.Description,
		MentorID:        mentorID,
		CourseID:        req.CourseID,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.store.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create session", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}
	response.Created(c, s)
}

// Get returns one session.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	s, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			response.NotFound(c, "session not found")
			return
		}
		h.logger.Error("get session", zap.Error(err))
		response.Internal(c, "failed to load session")
		return
	}
	response.OK(c, s)
}

type updateSessionRequest struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes *int       `json:"duration_minutes"`
}

// Update patches a scheduled session. Only the owning mentor may update.
func (h *Handler) Update(c *gin.Context) {
	s, ok := h.ownedSession(c)
	if !ok {
		return
	}
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if s.Status != models.SessionScheduled {
		response.Conflict(c, "only scheduled sessions can be updated")
		return
	}
	updated, err := h.store.Update(c.Request.Context(), s.ID, req.Title, req.Description, req.ScheduledAt, req.DurationMinutes)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			response.Conflict(c, "session is no longer scheduled")
			return
		}
		h.logger.Error("update session", zap.Error(err))
		response.Internal(c, "failed to update session")
		return
	}
	response.OK(c, updated)
}

// startResponse carries everything the mentor needs to go on air.
type startResponse struct {
	Session *models.Session    `json:"session"`
	Stream  *models.LiveStream `json:"stream"`
	Ingest  ingestCredentials  `json:"ingest"`
}

type ingestCredentials struct {
	IngestEndpoint string `json:"ingest_endpoint"`
	StreamKey      string `json:"stream_key"`
	PlaybackURL    string `json:"playback_url"`
}

// Start transitions a scheduled session to LIVE, opens the broadcast, starts
// the status monitor, and returns ingest credentials.
func (h *Handler) Start(c *gin.Context) {
	s, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if !s.CanStart() {
		response.Conflict(c, "session cannot be started from status "+string(s.Status))
		return
	}

	s, err := h.store.MarkLive(c.Request.Context(), s.ID)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			response.Conflict(c, "session cannot be started")
			return
		}
		h.logger.Error("mark session live", zap.Error(err))
		response.Internal(c, "failed to start session")
		return
	}

	stream, channel, err := h.streaming.StartBroadcast(c.Request.Context(), s.ID, s.MentorID)
	if err != nil {
		h.logger.Error("start broadcast", zap.Error(err), zap.String("session_id", s.ID.String()))
		// Put the session back so the mentor can retry the start.
		if revertErr := h.store.RevertToScheduled(c.Request.Context(), s.ID); revertErr != nil {
			h.logger.Error("revert session to scheduled", zap.Error(revertErr), zap.String("session_id", s.ID.String()))
		}
		response.Internal(c, "failed to start broadcast")
		return
	}
	s.LiveStream = stream

	h.monitors.Start(s.ID, channel.ChannelARN)
	h.hub.BroadcastAndPublish(s.ID, "session:started", gin.H{
		"session_id":   s.ID,
		"playback_url": stream.PlaybackURL,
	})
	h.logger.Info("session started",
		zap.String("session_id", s.ID.String()),
		zap.String("mentor_id", s.MentorID.String()),
	)

	response.OK(c, startResponse{
		Session: s,
		Stream:  stream,
		Ingest: ingestCredentials{
			IngestEndpoint: channel.IngestEndpoint,
			StreamKey:      channel.StreamKey,
			PlaybackURL:    channel.PlaybackURL,
		},
	})
}

// End transitions a live session to ENDED and tears down the broadcast.
func (h *Handler) End(c *gin.Context) {
	s, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if !s.CanEnd() {
		response.Conflict(c, "session cannot be ended from status "+string(s.Status))
		return
	}

	s, err := h.store.MarkEnded(c.Request.Context(), s.ID)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			response.Conflict(c, "session cannot be ended")
			return
		}
		h.logger.Error("mark session ended", zap.Error(err))
		response.Internal(c, "failed to end session")
		return
	}

	h.monitors.Stop(s.ID)
	if err := h.streaming.StopBroadcast(c.Request.Context(), s.ID); err != nil {
		h.logger.Error("stop broadcast", zap.Error(err), zap.String("session_id", s.ID.String()))
	}
	h.hub.BroadcastAndPublish(s.ID, "session:ended", gin.H{"session_id": s.ID})

	response.OK(c, s)
}

// Cancel transitions a scheduled session to CANCELLED.
func (h *Handler) Cancel(c *gin.Context) {
	s, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if !s.CanCancel() {
		response.Conflict(c, "session cannot be cancelled from status "+string(s.Status))
		return
	}
	s, err := h.store.MarkCancelled(c.Request.Context(), s.ID)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			response.Conflict(c, "session cannot be cancelled")
			return
		}
		h.logger.Error("mark session cancelled", zap.Error(err))
		response.Internal(c, "failed to cancel session")
		return
	}
	h.hub.BroadcastAndPublish(s.ID, "session:cancelled", gin.H{"session_id": s.ID})
	response.OK(c, s)
}

// ListMine returns the authenticated mentor's sessions.
func (h *Handler) ListMine(c *gin.Context) {
	mentorID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	list, err := h.store.ListByMentor(c.Request.Context(), mentorID)
	if err != nil {
		h.logger.Error("list sessions", zap.Error(err))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, list)
}

// ListUpcoming returns scheduled sessions anyone can browse.
func (h *Handler) ListUpcoming(c *gin.Context) {
	list, err := h.store.ListUpcoming(c.Request.Context())
	if err != nil {
		h.logger.Error("list upcoming sessions", zap.Error(err))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, list)
}

// ListLive returns sessions currently on air.
func (h *Handler) ListLive(c *gin.Context) {
	list, err := h.store.ListLive(c.Request.Context())
	if err != nil {
		h.logger.Error("list live sessions", zap.Error(err))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, list)
}

// ownedSession loads the session from the :id param and verifies the caller
// owns it. Writes the error response itself when returning ok=false.
func (h *Handler) ownedSession(c *gin.Context) (*models.Session, bool) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return nil, false
	}
	s, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			response.NotFound(c, "session not found")
			return nil, false
		}
		h.logger.Error("get session", zap.Error(err))
		response.Internal(c, "failed to load session")
		return nil, false
	}
	if s.MentorID != userID {
		response.Forbidden(c, "not the session owner")
		return nil, false
	}
	return s, true
}
