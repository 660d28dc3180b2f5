package quizzes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnlive/backend/internal/models"
)

// ErrQuizClosed is returned when an answer arrives outside the quiz window.
var ErrQuizClosed = errors.New("quiz is not accepting answers")

// ErrBadAnswer is returned when the answer index is out of range.
var ErrBadAnswer = errors.New("answer index out of range")

// Store is the persistence surface the scoring service needs. Satisfied by
// *Repository.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	SaveAnswer(ctx context.Context, a *models.QuizAnswer) error
}

// Service scores quiz answers. It implements the realtime channel's quiz
// sink so answers can arrive over the websocket as well as over HTTP.
type Service struct {
	repo   Store
	logger *zap.Logger
}

// NewService creates a Service.
func NewService(repo Store, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// SubmitAnswer validates and records a user's answer, awarding points when
// correct. One answer per user per quiz.
func (s *Service) SubmitAnswer(ctx context.Context, quizID, userID uuid.UUID, answer int) error {
	_, err := s.Answer(ctx, quizID, userID, answer)
	return err
}

// Answer is SubmitAnswer returning the recorded row for HTTP responses.
func (s *Service) Answer(ctx context.Context, quizID, userID uuid.UUID, answer int) (*models.QuizAnswer, error) {
	quiz, err := s.repo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.AcceptsAnswers(time.Now()) {
		return nil, ErrQuizClosed
	}
	if answer < 0 || answer >= len(quiz.Options) {
		return nil, ErrBadAnswer
	}

	a := &models.QuizAnswer{
		QuizID:  quizID,
		UserID:  userID,
		Answer:  answer,
		Correct: answer == quiz.CorrectAnswer,
	}
	if a.Correct {
		a.PointsAwarded = quiz.Points
	}
	if err := s.repo.SaveAnswer(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
