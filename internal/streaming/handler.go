package streaming

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/middleware"
	"github.com/learnlive/backend/pkg/ivs"
	"github.com/learnlive/backend/pkg/response"
)

// statusCacheTTL bounds provider API calls when many viewers poll status.
const statusCacheTTL = 5 * time.Second

// Handler serves streaming endpoints.
type Handler struct {
	svc    *Service
	repo   *Repository
	cache  *ttlcache.Cache[string, *ivs.StreamStatus]
	logger *zap.Logger
}

// NewHandler creates a Handler and starts its status cache janitor.
func NewHandler(svc *Service, repo *Repository, logger *zap.Logger) *Handler {
	cache := ttlcache.New[string, *ivs.StreamStatus](
		ttlcache.WithTTL[string, *ivs.StreamStatus](statusCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, *ivs.StreamStatus](),
	)
	go cache.Start()
	return &Handler{svc: svc, repo: repo, cache: cache, logger: logger}
}

// Stop halts the status cache janitor. Called during shutdown.
func (h *Handler) Stop() {
	h.cache.Stop()
}

// GetMyChannel returns the authenticated mentor's channel, provisioning it on
// first use. This is the only endpoint that exposes the stream key.
func (h *Handler) GetMyChannel(c *gin.Context) {
	mentorID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	ch, err := h.svc.GetOrCreateChannel(c.Request.Context(), mentorID)
	if err != nil {
		h.logger.Error("get or create channel", zap.Error(err))
		response.Internal(c, "failed to load channel")
		return
	}
	response.OK(c, ch)
}

// StreamStatus returns the live status of a session's broadcast. Results are
// cached briefly so viewer polling does not hammer the provider.
func (h *Handler) StreamStatus(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}

	if item := h.cache.Get(sessionID.String()); item != nil {
		response.OK(c, item.Value())
		return
	}

	status, err := h.svc.StreamStatus(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			response.NotFound(c, "no active stream for session")
			return
		}
		if errors.Is(err, ivs.ErrStreamOffline) {
			response.OK(c, ivs.StreamStatus{State: "OFFLINE"})
			return
		}
		h.logger.Error("stream status", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to fetch stream status")
		return
	}

	h.cache.Set(sessionID.String(), status, ttlcache.DefaultTTL)
	response.OK(c, status)
}

// ListActive returns all open broadcasts.
func (h *Handler) ListActive(c *gin.Context) {
	streams, err := h.repo.ListActiveStreams(c.Request.Context())
	if err != nil {
		h.logger.Error("list active streams", zap.Error(err))
		response.Internal(c, "failed to list streams")
		return
	}
	response.OK(c, streams)
}
