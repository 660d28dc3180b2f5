package quizzes

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

// SessionGetter resolves sessions for ownership checks. Satisfied by
// *sessions.Repository.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// Broadcaster pushes quiz events to the session room. Satisfied by
// *realtime.Hub.
type Broadcaster interface {
	BroadcastAndPublish(sessionID uuid.UUID, event string, data interface{})
}

// QuizStore is the persistence surface the handler needs. Satisfied by
// *Repository.
type QuizStore interface {
	Create(ctx context.Context, q *models.Quiz) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	Launch(ctx context.Context, id uuid.UUID, windowSeconds int) (*models.Quiz, error)
	Close(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Quiz, error)
	Stats(ctx context.Context, quizID uuid.UUID, optionCount int) (*AnswerStats, error)
	SessionScores(ctx context.Context, sessionID uuid.UUID) ([]ScoreRow, error)
}

// Handler serves quiz endpoints.
type Handler struct {
	repo     QuizStore
	svc      *Service
	sessions SessionGetter
	hub      Broadcaster
	logger   *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(repo QuizStore, svc *Service, sessions SessionGetter, hub Broadcaster, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, svc: svc, sessions: sessions, hub: hub, logger: logger}
}

type createQuizRequest struct {
	SessionID     uuid.UUID `json:"session_id" binding:"required"`
	Question      string    `json:"question" binding:"required"`
	Options       []string  `json:"options" binding:"required,min=2,max=10"`
	CorrectAnswer int       `json:"correct_answer"`
	Points        int       `json:"points"`
}

// Create adds a quiz to a session the caller owns.
func (h *Handler) Create(c *gin.Context) {
	var req createQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Points <= 0 {
		req.Points = 10
	}

	q := &models.Quiz{
		SessionID:     req.SessionID,
		Question:      req.Question,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Points:        req.Points,
	}
	if !q.Valid() {
		response.BadRequest(c, "correct_answer must index into options")
		return
	}
	if !h.ownsSession(c, req.SessionID) {
		return
	}
	if err := h.repo.Create(c.Request.Context(), q); err != nil {
		h.logger.Error("create quiz", zap.Error(err))
		response.Internal(c, "failed to create quiz")
		return
	}
	response.Created(c, q)
}

// launchedQuiz is the quiz as broadcast to students: no correct answer.
type launchedQuiz struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	Points    int       `json:"points"`
	EndsAt    string    `json:"ends_at,omitempty"`
}

type launchQuizRequest struct {
	WindowSeconds int `json:"window_seconds"`
}

// Launch opens the quiz's answer window and pushes it to the session room.
func (h *Handler) Launch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	var req launchQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, err.Error())
		return
	}
	if req.WindowSeconds <= 0 {
		req.WindowSeconds = 60
	}

	existing, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			response.NotFound(c, "quiz not found")
			return
		}
		h.logger.Error("get quiz", zap.Error(err))
		response.Internal(c, "failed to launch quiz")
		return
	}
	if !h.ownsSession(c, existing.SessionID) {
		return
	}
	if existing.Launched {
		response.Conflict(c, "quiz already launched")
		return
	}

	q, err := h.repo.Launch(c.Request.Context(), id, req.WindowSeconds)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			response.Conflict(c, "quiz already launched")
			return
		}
		h.logger.Error("launch quiz", zap.Error(err))
		response.Internal(c, "failed to launch quiz")
		return
	}

	payload := launchedQuiz{
		ID:        q.ID,
		SessionID: q.SessionID,
		Question:  q.Question,
		Options:   q.Options,
		Points:    q.Points,
	}
	if q.EndsAt != nil {
		payload.EndsAt = q.EndsAt.UTC().Format(time.RFC3339)
	}
	h.hub.BroadcastAndPublish(q.SessionID, "quiz:launched", payload)
	response.OK(c, q)
}

// Close ends the answer window and pushes the correct answer plus the
// answer distribution to the session room.
func (h *Handler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	existing, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			response.NotFound(c, "quiz not found")
			return
		}
		h.logger.Error("get quiz", zap.Error(err))
		response.Internal(c, "failed to close quiz")
		return
	}
	if !h.ownsSession(c, existing.SessionID) {
		return
	}

	q, err := h.repo.Close(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			response.Conflict(c, "quiz is not open")
			return
		}
		h.logger.Error("close quiz", zap.Error(err))
		response.Internal(c, "failed to close quiz")
		return
	}

	stats, err := h.repo.Stats(c.Request.Context(), q.ID, len(q.Options))
	if err != nil {
		h.logger.Error("quiz stats", zap.Error(err))
		stats = &AnswerStats{Counts: make([]int, len(q.Options))}
	}
	h.hub.BroadcastAndPublish(q.SessionID, "quiz:closed", gin.H{
		"quiz_id":        q.ID,
		"correct_answer": q.CorrectAnswer,
		"stats":          stats,
	})
	response.OK(c, gin.H{"quiz": q, "stats": stats})
}

// Delete removes a quiz from a session the caller owns. A quiz with an open
// answer window must be closed first.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	existing, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			response.NotFound(c, "quiz not found")
			return
		}
		h.logger.Error("get quiz", zap.Error(err))
		response.Internal(c, "failed to delete quiz")
		return
	}
	if !h.ownsSession(c, existing.SessionID) {
		return
	}
	if existing.Launched && !existing.Closed {
		response.Conflict(c, "quiz is open; close it before deleting")
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			response.NotFound(c, "quiz not found")
			return
		}
		h.logger.Error("delete quiz", zap.Error(err))
		response.Internal(c, "failed to delete quiz")
		return
	}
	response.NoContent(c)
}

type answerRequest struct {
	Answer *int `json:"answer" binding:"required"`
}

// Answer records the authenticated user's answer over HTTP.
func (h *Handler) Answer(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	a, err := h.svc.Answer(c.Request.Context(), id, userID, *req.Answer)
	if err != nil {
		switch {
		case errors.Is(err, ErrQuizNotFound):
			response.NotFound(c, "quiz not found")
		case errors.Is(err, ErrQuizClosed):
			response.Conflict(c, "quiz is not accepting answers")
		case errors.Is(err, ErrBadAnswer):
			response.BadRequest(c, "answer index out of range")
		case errors.Is(err, ErrAlreadyAnswered):
			response.Conflict(c, "quiz already answered")
		default:
			h.logger.Error("answer quiz", zap.Error(err))
			response.Internal(c, "failed to record answer")
		}
		return
	}
	response.OK(c, a)
}

// ListBySession returns a session's quizzes. Students get them without the
// correct answers; the owning mentor sees everything.
func (h *Handler) ListBySession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.repo.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("list quizzes", zap.Error(err))
		response.Internal(c, "failed to list quizzes")
		return
	}

	userID, _ := middleware.UserIDFromContext(c)
	isOwner := false
	if s, err := h.sessions.GetByID(c.Request.Context(), sessionID); err == nil && s.MentorID == userID {
		isOwner = true
	}
	if !isOwner {
		redacted := make([]launchedQuiz, 0, len(list))
		for _, q := range list {
			redacted = append(redacted, launchedQuiz{
				ID: q.ID, SessionID: q.SessionID, Question: q.Question,
				Options: q.Options, Points: q.Points,
			})
		}
		response.OK(c, redacted)
		return
	}
	response.OK(c, list)
}

// Leaderboard returns the session's score table.
func (h *Handler) Leaderboard(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	scores, err := h.repo.SessionScores(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("session scores", zap.Error(err))
		response.Internal(c, "failed to load leaderboard")
		return
	}
	response.OK(c, scores)
}

// ownsSession verifies the caller owns the session, writing the error
// response when returning false.
func (h *Handler) ownsSession(c *gin.Context, sessionID uuid.UUID) bool {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return false
	}
	s, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.NotFound(c, "session not found")
		return false
	}
	if s.MentorID != userID {
		response.Forbidden(c, "not the session owner")
		return false
	}
	return true
}
