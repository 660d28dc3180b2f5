package analytics

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/middleware"
	"github.com/learnlive/backend/pkg/response"
)

// Handler serves analytics endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// SessionSummary returns aggregated numbers for one session.
func (h *Handler) SessionSummary(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	summary, err := h.repo.SessionSummary(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("session summary", zap.Error(err))
		response.Internal(c, "failed to load summary")
		return
	}
	response.OK(c, summary)
}

// MentorOverview returns the authenticated mentor's dashboard numbers.
func (h *Handler) MentorOverview(c *gin.Context) {
	mentorID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	overview, err := h.repo.MentorOverview(c.Request.Context(), mentorID)
	if err != nil {
		h.logger.Error("mentor overview", zap.Error(err))
		response.Internal(c, "failed to load overview")
		return
	}
	response.OK(c, overview)
}
