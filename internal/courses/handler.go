package courses

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/middleware"
	"github.com/learnlive/backend/internal/models"
	"github.com/learnlive/backend/pkg/response"
)

// SessionLister returns a course's sessions. Satisfied by
// *sessions.Repository.
type SessionLister interface {
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Session, error)
}

// Handler serves course and enrollment endpoints.
type Handler struct {
	repo     *Repository
	sessions SessionLister
	logger   *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(repo *Repository, sessions SessionLister, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, sessions: sessions, logger: logger}
}

type createCourseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	Category    string `json:"category"`
}

// Create adds a course owned by the authenticated mentor.
func (h *Handler) Create(c *gin.Context) {
	mentorID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	var req createCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	course := &models.Course{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		MentorID:    mentorID,
	}
	if err := h.repo.Create(c.Request.Context(), course); err != nil {
		h.logger.Error("create course", zap.Error(err))
		response.Internal(c, "failed to create course")
		return
	}
	response.Created(c, course)
}

// List returns all courses, optionally filtered by ?category=.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.logger.Error("list courses", zap.Error(err))
		response.Internal(c, "failed to list courses")
		return
	}
	response.OK(c, list)
}

// Get returns one course with its enrolled count.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	course, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			response.NotFound(c, "course not found")
			return
		}
		h.logger.Error("get course", zap.Error(err))
		response.Internal(c, "failed to load course")
		return
	}
	enrolled, err := h.repo.CountEnrolled(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("count enrolled", zap.Error(err))
	}
	response.OK(c, gin.H{"course": course, "enrolled_count": enrolled})
}

type updateCourseRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

// Update patches a course. Only the owning mentor may update.
func (h *Handler) Update(c *gin.Context) {
	mentorID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	course, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			response.NotFound(c, "course not found")
			return
		}
		h.logger.Error("get course", zap.Error(err))
		response.Internal(c, "failed to load course")
		return
	}
	if course.MentorID != mentorID {
		response.Forbidden(c, "not the course owner")
		return
	}

	var req updateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	updated, err := h.repo.Update(c.Request.Context(), id, req.Title, req.Description, req.Category)
	if err != nil {
		h.logger.Error("update course", zap.Error(err))
		response.Internal(c, "failed to update course")
		return
	}
	response.OK(c, updated)
}

// Sessions returns a course's class sessions in schedule order.
func (h *Handler) Sessions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	list, err := h.sessions.ListByCourse(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list course sessions", zap.Error(err))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, list)
}

// Enroll adds the authenticated student to a course.
func (h *Handler) Enroll(c *gin.Context) {
	studentID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	if _, err := h.repo.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			response.NotFound(c, "course not found")
			return
		}
		h.logger.Error("get course", zap.Error(err))
		response.Internal(c, "failed to enroll")
		return
	}

	enrollment, err := h.repo.Enroll(c.Request.Context(), id, studentID)
	if err != nil {
		if errors.Is(err, ErrAlreadyEnrolled) {
			response.Conflict(c, "already enrolled")
			return
		}
		h.logger.Error("enroll", zap.Error(err))
		response.Internal(c, "failed to enroll")
		return
	}
	response.Created(c, enrollment)
}

// Unenroll removes the authenticated student from a course.
func (h *Handler) Unenroll(c *gin.Context) {
	studentID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	if err := h.repo.Unenroll(c.Request.Context(), id, studentID); err != nil {
		if errors.Is(err, ErrNotEnrolled) {
			response.NotFound(c, "not enrolled")
			return
		}
		h.logger.Error("unenroll", zap.Error(err))
		response.Internal(c, "failed to unenroll")
		return
	}
	response.NoContent(c)
}

// MyEnrollments returns the authenticated student's courses.
func (h *Handler) MyEnrollments(c *gin.Context) {
	studentID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	list, err := h.repo.ListEnrolled(c.Request.Context(), studentID)
	if err != nil {
		h.logger.Error("list enrollments", zap.Error(err))
		response.Internal(c, "failed to list enrollments")
		return
	}
	response.OK(c, list)
}

// MyCourses returns the authenticated mentor's courses.
func (h *Handler) MyCourses(c *gin.Context) {
	mentorID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	list, err := h.repo.ListByMentor(c.Request.Context(), mentorID)
	if err != nil {
		h.logger.Error("list mentor courses", zap.Error(err))
		response.Internal(c, "failed to list courses")
		return
	}
	response.OK(c, list)
}
