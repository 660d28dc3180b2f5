package quizzes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/middleware"
	"github.com/learnlive/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeQuizRepo struct {
	quizzes map[uuid.UUID]*models.Quiz
}

func newFakeQuizRepo(list ...*models.Quiz) *fakeQuizRepo {
	r := &fakeQuizRepo{quizzes: make(map[uuid.UUID]*models.Quiz)}
	for _, q := range list {
		r.quizzes[q.ID] = q
	}
	return r
}

func (r *fakeQuizRepo) Create(ctx context.Context, q *models.Quiz) error {
	q.ID = uuid.New()
	q.CreatedAt = time.Now()
	r.quizzes[q.ID] = q
	return nil
}

func (r *fakeQuizRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q, ok := r.quizzes[id]
	if !ok {
		return nil, ErrQuizNotFound
	}
	copied := *q
	return &copied, nil
}

func (r *fakeQuizRepo) Launch(ctx context.Context, id uuid.UUID, windowSeconds int) (*models.Quiz, error) {
	q, ok := r.quizzes[id]
	if !ok || q.Launched {
		return nil, ErrQuizNotFound
	}
	starts := time.Now()
	ends := starts.Add(time.Duration(windowSeconds) * time.Second)
	q.Launched = true
	q.StartsAt = &starts
	q.EndsAt = &ends
	copied := *q
	return &copied, nil
}

func (r *fakeQuizRepo) Close(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q, ok := r.quizzes[id]
	if !ok || !q.Launched || q.Closed {
		return nil, ErrQuizNotFound
	}
	q.Closed = true
	copied := *q
	return &copied, nil
}

func (r *fakeQuizRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.quizzes[id]; !ok {
		return ErrQuizNotFound
	}
	delete(r.quizzes, id)
	return nil
}

func (r *fakeQuizRepo) SaveAnswer(ctx context.Context, a *models.QuizAnswer) error {
	a.AnsweredAt = time.Now()
	return nil
}

func (r *fakeQuizRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Quiz, error) {
	var out []models.Quiz
	for _, q := range r.quizzes {
		if q.SessionID == sessionID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r *fakeQuizRepo) Stats(ctx context.Context, quizID uuid.UUID, optionCount int) (*AnswerStats, error) {
	return &AnswerStats{Counts: make([]int, optionCount)}, nil
}

func (r *fakeQuizRepo) SessionScores(ctx context.Context, sessionID uuid.UUID) ([]ScoreRow, error) {
	return nil, nil
}

type fakeSessionGetter struct {
	sessions map[uuid.UUID]*models.Session
}

func (f *fakeSessionGetter) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("session not found")
	}
	return s, nil
}

type fakeHub struct {
	events []string
}

func (f *fakeHub) BroadcastAndPublish(sessionID uuid.UUID, event string, data interface{}) {
	f.events = append(f.events, event)
}

type quizFixture struct {
	repo   *fakeQuizRepo
	hub    *fakeHub
	router *gin.Engine
}

func newQuizFixture(userID uuid.UUID, session *models.Session, list ...*models.Quiz) *quizFixture {
	f := &quizFixture{
		repo: newFakeQuizRepo(list...),
		hub:  &fakeHub{},
	}
	sessions := &fakeSessionGetter{sessions: map[uuid.UUID]*models.Session{session.ID: session}}
	h := NewHandler(f.repo, NewService(f.repo, zap.NewNop()), sessions, f.hub, zap.NewNop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
	})
	r.DELETE("/quizzes/:id", h.Delete)
	r.POST("/quizzes/:id/close", h.Close)
	f.router = r
	return f
}

func draftQuiz(sessionID uuid.UUID) *models.Quiz {
	return &models.Quiz{
		ID:            uuid.New(),
		SessionID:     sessionID,
		Question:      "Which keyword declares a constant?",
		Options:       []string{"const", "let", "final", "static"},
		CorrectAnswer: 0,
		Points:        10,
	}
}

func TestDeleteQuizByOwner(t *testing.T) {
	mentorID := uuid.New()
	session := &models.Session{ID: uuid.New(), MentorID: mentorID}
	quiz := draftQuiz(session.ID)
	f := newQuizFixture(mentorID, session, quiz)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/quizzes/"+quiz.ID.String(), nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	_, exists := f.repo.quizzes[quiz.ID]
	assert.False(t, exists)
}

func TestDeleteQuizNotOwnerForbidden(t *testing.T) {
	session := &models.Session{ID: uuid.New(), MentorID: uuid.New()}
	quiz := draftQuiz(session.ID)
	f := newQuizFixture(uuid.New(), session, quiz) // caller is a different mentor

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/quizzes/"+quiz.ID.String(), nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	_, exists := f.repo.quizzes[quiz.ID]
	assert.True(t, exists)
}

func TestDeleteOpenQuizConflicts(t *testing.T) {
	mentorID := uuid.New()
	session := &models.Session{ID: uuid.New(), MentorID: mentorID}
	quiz := draftQuiz(session.ID)
	quiz.Launched = true
	f := newQuizFixture(mentorID, session, quiz)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/quizzes/"+quiz.ID.String(), nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	_, exists := f.repo.quizzes[quiz.ID]
	assert.True(t, exists)
}

func TestDeleteClosedQuizAllowed(t *testing.T) {
	mentorID := uuid.New()
	session := &models.Session{ID: uuid.New(), MentorID: mentorID}
	quiz := draftQuiz(session.ID)
	quiz.Launched = true
	quiz.Closed = true
	f := newQuizFixture(mentorID, session, quiz)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/quizzes/"+quiz.ID.String(), nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteMissingQuizNotFound(t *testing.T) {
	mentorID := uuid.New()
	session := &models.Session{ID: uuid.New(), MentorID: mentorID}
	f := newQuizFixture(mentorID, session)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/quizzes/"+uuid.NewString(), nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
