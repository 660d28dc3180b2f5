package mentors

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
	"github.com/learnlive/backend/pkg/utils"
)

// invitationTTL is how long an invitation stays usable.
const invitationTTL = 7 * 24 * time.Hour

// UserPromoter upgrades an account to the mentor role. Satisfied by
// *auth.Repository.
type UserPromoter interface {
	PromoteToMentor(ctx context.Context, id uuid.UUID) error
}

// Handler serves mentor invitation endpoints.
type Handler struct {
	repo   *Repository
	users  UserPromoter
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(repo *Repository, users UserPromoter, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, users: users, logger: logger}
}

type inviteRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Invite creates an invitation token for a prospective mentor. Admin only.
func (h *Handler) Invite(c *gin.Context) {
	adminID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, err := utils.RandomToken(32)
	if err != nil {
		h.logger.Error("generate token", zap.Error(err))
		response.Internal(c, "failed to create invitation")
		return
	}
	inv := &models.MentorInvitation{
		Email:     req.Email,
		Token:     token,
		InvitedBy: adminID,
		ExpiresAt: time.Now().Add(invitationTTL).UTC(),
	}
	if err := h.repo.Create(c.Request.Context(), inv); err != nil {
		h.logger.Error("create invitation", zap.Error(err))
		response.Internal(c, "failed to create invitation")
		return
	}
	response.Created(c, inv)
}

// Validate reports whether an invitation token is still usable. Public, so
// the signup page can check before showing the mentor flow.
func (h *Handler) Validate(c *gin.Context) {
	inv, err := h.repo.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			response.NotFound(c, "invitation not found")
			return
		}
		h.logger.Error("get invitation", zap.Error(err))
		response.Internal(c, "failed to validate invitation")
		return
	}
	response.OK(c, gin.H{
		"email":      inv.Email,
		"usable":     inv.Usable(time.Now()),
		"expires_at": inv.ExpiresAt,
	})
}

// Accept consumes the invitation and promotes the authenticated user to
// mentor.
func (h *Handler) Accept(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	inv, err := h.repo.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			response.NotFound(c, "invitation not found")
			return
		}
		h.logger.Error("get invitation", zap.Error(err))
		response.Internal(c, "failed to accept invitation")
		return
	}
	if !inv.Usable(time.Now()) {
		response.Conflict(c, "invitation expired or already used")
		return
	}

	if err := h.repo.MarkAccepted(c.Request.Context(), inv.ID); err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			response.Conflict(c, "invitation already used")
			return
		}
		h.logger.Error("mark accepted", zap.Error(err))
		response.Internal(c, "failed to accept invitation")
		return
	}
	if err := h.users.PromoteToMentor(c.Request.Context(), userID); err != nil {
		h.logger.Error("promote to mentor", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to accept invitation")
		return
	}

	h.logger.Info("mentor invitation accepted",
		zap.String("user_id", userID.String()),
		zap.String("invitation_id", inv.ID.String()),
	)
	response.OK(c, gin.H{"role": models.RoleMentor})
}

// ListPending returns open invitations. Admin only.
func (h *Handler) ListPending(c *gin.Context) {
	list, err := h.repo.ListPending(c.Request.Context())
	if err != nil {
		h.logger.Error("list invitations", zap.Error(err))
		response.Internal(c, "failed to list invitations")
		return
	}
	response.OK(c, list)
}
