package attendance

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/middleware"
	"github.com/learnlive/backend/pkg/response"
)

// Handler serves attendance endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Attendees returns per-viewer attendance for a session. Mentor only.
func (h *Handler) Attendees(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.repo.ListAttendees(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("list attendees", zap.Error(err))
		response.Internal(c, "failed to list attendees")
		return
	}
	response.OK(c, list)
}

// MyHistory returns the authenticated user's attendance, newest first.
func (h *Handler) MyHistory(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	list, err := h.repo.History(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("attendance history", zap.Error(err))
		response.Internal(c, "failed to load history")
		return
	}
	response.OK(c, list)
}
