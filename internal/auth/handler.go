package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/middleware"
	"github.com/learnlive/backend/internal/models"
	"github.com/learnlive/backend/pkg/response"
	"github.com/learnlive/backend/pkg/utils"
)

// Handler serves auth and profile endpoints.
type Handler struct {
	repo   *Repository
	issuer *TokenIssuer
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(repo *Repository, issuer *TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, issuer: issuer, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
}

type authResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Register creates a student account and returns a token.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", zap.Error(err))
		response.Internal(c, "failed to create account")
		return
	}

	user := &models.User{
		Email:    req.Email,
		Password: hash,
		FullName: req.FullName,
		Role:     models.RoleStudent,
	}
	if err := h.repo.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			response.Conflict(c, "email already registered")
			return
		}
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create account")
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		h.logger.Error("issue token", zap.Error(err))
		response.Internal(c, "failed to create account")
		return
	}
	response.Created(c, authResponse{Token: token, User: user.ToPublic()})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and returns a token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.Unauthorized(c, "invalid credentials")
			return
		}
		h.logger.Error("get user", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid credentials")
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		h.logger.Error("issue token", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	response.OK(c, authResponse{Token: token, User: user.ToPublic()})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		h.logger.Error("get user", zap.Error(err))
		response.Internal(c, "failed to load profile")
		return
	}
	response.OK(c, user.ToPublic())
}

type updateProfileRequest struct {
	FullName  *string `json:"full_name"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatar_url"`
}

// UpdateProfile patches the authenticated user's profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.repo.UpdateProfile(c.Request.Context(), userID, req.FullName, req.Bio, req.AvatarURL)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		h.logger.Error("update profile", zap.Error(err))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, user.ToPublic())
}
