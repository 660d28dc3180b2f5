package quizzes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/models"
)

type memQuizStore struct {
	quizzes map[uuid.UUID]*models.Quiz
	answers map[uuid.UUID]map[uuid.UUID]*models.QuizAnswer
}

func newMemQuizStore(list ...*models.Quiz) *memQuizStore {
	s := &memQuizStore{
		quizzes: make(map[uuid.UUID]*models.Quiz),
		answers: make(map[uuid.UUID]map[uuid.UUID]*models.QuizAnswer),
	}
	for _, q := range list {
		s.quizzes[q.ID] = q
	}
	return s
}

func (s *memQuizStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q, ok := s.quizzes[id]
	if !ok {
		return nil, ErrQuizNotFound
	}
	return q, nil
}

func (s *memQuizStore) SaveAnswer(ctx context.Context, a *models.QuizAnswer) error {
	byUser, ok := s.answers[a.QuizID]
	if !ok {
		byUser = make(map[uuid.UUID]*models.QuizAnswer)
		s.answers[a.QuizID] = byUser
	}
	if _, dup := byUser[a.UserID]; dup {
		return ErrAlreadyAnswered
	}
	a.AnsweredAt = time.Now()
	byUser[a.UserID] = a
	return nil
}

func openQuiz() *models.Quiz {
	starts := time.Now().Add(-time.Minute)
	ends := time.Now().Add(time.Minute)
	return &models.Quiz{
		ID:            uuid.New(),
		SessionID:     uuid.New(),
		Question:      "Which keyword starts a goroutine?",
		Options:       []string{"go", "run", "spawn", "async"},
		CorrectAnswer: 0,
		Points:        10,
		StartsAt:      &starts,
		EndsAt:        &ends,
		Launched:      true,
	}
}

func TestAnswerScoresCorrect(t *testing.T) {
	quiz := openQuiz()
	svc := NewService(newMemQuizStore(quiz), zap.NewNop())

	a, err := svc.Answer(context.Background(), quiz.ID, uuid.New(), 0)
	require.NoError(t, err)
	assert.True(t, a.Correct)
	assert.Equal(t, 10, a.PointsAwarded)
}

func TestAnswerWrongGetsNoPoints(t *testing.T) {
	quiz := openQuiz()
	svc := NewService(newMemQuizStore(quiz), zap.NewNop())

	a, err := svc.Answer(context.Background(), quiz.ID, uuid.New(), 2)
	require.NoError(t, err)
	assert.False(t, a.Correct)
	assert.Zero(t, a.PointsAwarded)
}

func TestAnswerOutOfRangeRejected(t *testing.T) {
	quiz := openQuiz()
	svc := NewService(newMemQuizStore(quiz), zap.NewNop())

	_, err := svc.Answer(context.Background(), quiz.ID, uuid.New(), 4)
	assert.ErrorIs(t, err, ErrBadAnswer)

	_, err = svc.Answer(context.Background(), quiz.ID, uuid.New(), -1)
	assert.ErrorIs(t, err, ErrBadAnswer)
}

func TestAnswerOutsideWindowRejected(t *testing.T) {
	quiz := openQuiz()
	past := time.Now().Add(-time.Second)
	quiz.EndsAt = &past
	svc := NewService(newMemQuizStore(quiz), zap.NewNop())

	_, err := svc.Answer(context.Background(), quiz.ID, uuid.New(), 0)
	assert.ErrorIs(t, err, ErrQuizClosed)
}

func TestAnswerNotLaunchedRejected(t *testing.T) {
	quiz := openQuiz()
	quiz.Launched = false
	svc := NewService(newMemQuizStore(quiz), zap.NewNop())

	_, err := svc.Answer(context.Background(), quiz.ID, uuid.New(), 0)
	assert.ErrorIs(t, err, ErrQuizClosed)
}

func TestAnswerOncePerUser(t *testing.T) {
	quiz := openQuiz()
	svc := NewService(newMemQuizStore(quiz), zap.NewNop())
	userID := uuid.New()

	_, err := svc.Answer(context.Background(), quiz.ID, userID, 0)
	require.NoError(t, err)

	_, err = svc.Answer(context.Background(), quiz.ID, userID, 1)
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
}

func TestSubmitAnswerSatisfiesRealtimeSink(t *testing.T) {
	quiz := openQuiz()
	store := newMemQuizStore(quiz)
	svc := NewService(store, zap.NewNop())
	userID := uuid.New()

	require.NoError(t, svc.SubmitAnswer(context.Background(), quiz.ID, userID, 0))
	assert.NotNil(t, store.answers[quiz.ID][userID])
}
