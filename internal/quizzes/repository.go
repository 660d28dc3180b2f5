package quizzes

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnlive/backend/internal/models"
)

// ErrQuizNotFound is returned when no quiz matches the lookup.
var ErrQuizNotFound = errors.New("quiz not found")

// ErrAlreadyAnswered is returned when a user answers the same quiz twice.
var ErrAlreadyAnswered = errors.New("quiz already answered")

// Repository persists quizzes and answers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const createQuizSQL = `
INSERT INTO quizzes (session_id, question, options, correct_answer, points)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`

// Create inserts a quiz. Options are stored as a JSON array.
func (r *Repository) Create(ctx context.Context, q *models.Quiz) error {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, createQuizSQL,
		q.SessionID, q.Question, opts, q.CorrectAnswer, q.Points,
	).Scan(&q.ID, &q.CreatedAt)
}

const quizColumns = `id, session_id, question, options, correct_answer, points, starts_at, ends_at, launched, closed, created_at`

func scanQuiz(row pgx.Row) (*models.Quiz, error) {
	q := &models.Quiz{}
	var opts []byte
	err := row.Scan(
		&q.ID, &q.SessionID, &q.Question, &opts, &q.CorrectAnswer, &q.Points,
		&q.StartsAt, &q.EndsAt, &q.Launched, &q.Closed, &q.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(opts, &q.Options); err != nil {
		return nil, err
	}
	return q, nil
}

// GetByID looks up a quiz.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	return scanQuiz(r.pool.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
}

const launchQuizSQL = `
UPDATE quizzes SET launched = TRUE, starts_at = NOW(), ends_at = NOW() + ($2 * INTERVAL '1 second')
WHERE id = $1 AND NOT launched
RETURNING ` + quizColumns

// Launch opens the quiz's answer window for windowSeconds. Launching an
// already launched quiz returns ErrQuizNotFound via the guard.
func (r *Repository) Launch(ctx context.Context, id uuid.UUID, windowSeconds int) (*models.Quiz, error) {
	return scanQuiz(r.pool.QueryRow(ctx, launchQuizSQL, id, windowSeconds))
}

const closeQuizSQL = `
UPDATE quizzes SET closed = TRUE, ends_at = LEAST(ends_at, NOW())
WHERE id = $1 AND launched AND NOT closed
RETURNING ` + quizColumns

// Close ends the quiz's answer window early.
func (r *Repository) Close(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	return scanQuiz(r.pool.QueryRow(ctx, closeQuizSQL, id))
}

// Delete removes a quiz; its answers go with it via the FK cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuizNotFound
	}
	return nil
}

// ListBySession returns a session's quizzes in creation order.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Quiz
	for rows.Next() {
		var q models.Quiz
		var opts []byte
		if err := rows.Scan(
			&q.ID, &q.SessionID, &q.Question, &opts, &q.CorrectAnswer, &q.Points,
			&q.StartsAt, &q.EndsAt, &q.Launched, &q.Closed, &q.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(opts, &q.Options); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

const insertAnswerSQL = `
INSERT INTO quiz_answers (quiz_id, user_id, answer, correct, points_awarded)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (quiz_id, user_id) DO NOTHING
RETURNING answered_at`

// SaveAnswer records a user's answer. Returns ErrAlreadyAnswered on a repeat.
func (r *Repository) SaveAnswer(ctx context.Context, a *models.QuizAnswer) error {
	err := r.pool.QueryRow(ctx, insertAnswerSQL,
		a.QuizID, a.UserID, a.Answer, a.Correct, a.PointsAwarded,
	).Scan(&a.AnsweredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAlreadyAnswered
	}
	return err
}

// AnswerStats is the per-option answer distribution for a quiz.
type AnswerStats struct {
	Total  int   `json:"total"`
	Counts []int `json:"counts"`
}

// Stats returns how many users picked each option.
func (r *Repository) Stats(ctx context.Context, quizID uuid.UUID, optionCount int) (*AnswerStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT answer, COUNT(*) FROM quiz_answers WHERE quiz_id = $1 GROUP BY answer`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &AnswerStats{Counts: make([]int, optionCount)}
	for rows.Next() {
		var answer, count int
		if err := rows.Scan(&answer, &count); err != nil {
			return nil, err
		}
		if answer >= 0 && answer < optionCount {
			stats.Counts[answer] = count
		}
		stats.Total += count
	}
	return stats, rows.Err()
}

// ScoreRow is one entry in a session leaderboard.
type ScoreRow struct {
	UserID   uuid.UUID `json:"user_id"`
	FullName string    `json:"full_name"`
	Points   int       `json:"points"`
	Correct  int       `json:"correct"`
}

const sessionScoresSQL = `
SELECT a.user_id, u.full_name, COALESCE(SUM(a.points_awarded), 0), COUNT(*) FILTER (WHERE a.correct)
FROM quiz_answers a
JOIN quizzes q ON q.id = a.quiz_id
JOIN users u ON u.id = a.user_id
WHERE q.session_id = $1
GROUP BY a.user_id, u.full_name
ORDER BY 3 DESC, 4 DESC`

// SessionScores returns the session leaderboard, highest points first.
func (r *Repository) SessionScores(ctx context.Context, sessionID uuid.UUID) ([]ScoreRow, error) {
	rows, err := r.pool.Query(ctx, sessionScoresSQL, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoreRow
	for rows.Next() {
		var s ScoreRow
		if err := rows.Scan(&s.UserID, &s.FullName, &s.Points, &s.Correct); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
