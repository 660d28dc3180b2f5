package mentors

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnlive/backend/internal/models"
)

// ErrInvitationNotFound is returned when no invitation matches the token.
var ErrInvitationNotFound = errors.New("invitation not found")

// Repository persists mentor invitations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const createInvitationSQL = `
INSERT INTO mentor_invitations (email, token, invited_by, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`

// Create inserts an invitation.
func (r *Repository) Create(ctx context.Context, inv *models.MentorInvitation) error {
	return r.pool.QueryRow(ctx, createInvitationSQL,
		inv.Email, inv.Token, inv.InvitedBy, inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt)
}

const getByTokenSQL = `
SELECT id, email, token, invited_by, expires_at, accepted_at, created_at
FROM mentor_invitations WHERE token = $1`

// GetByToken looks up an invitation by its token.
func (r *Repository) GetByToken(ctx context.Context, token string) (*models.MentorInvitation, error) {
	inv := &models.MentorInvitation{}
	err := r.pool.QueryRow(ctx, getByTokenSQL, token).Scan(
		&inv.ID, &inv.Email, &inv.Token, &inv.InvitedBy, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

const markAcceptedSQL = `
UPDATE mentor_invitations SET accepted_at = NOW()
WHERE id = $1 AND accepted_at IS NULL`

// MarkAccepted stamps the invitation as used. The guard makes concurrent
// accepts race safely; the loser gets ErrInvitationNotFound.
func (r *Repository) MarkAccepted(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, markAcceptedSQL, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvitationNotFound
	}
	return nil
}

const listPendingSQL = `
SELECT id, email, token, invited_by, expires_at, accepted_at, created_at
FROM mentor_invitations
WHERE accepted_at IS NULL AND expires_at > NOW()
ORDER BY created_at DESC`

// ListPending returns invitations that can still be accepted.
func (r *Repository) ListPending(ctx context.Context) ([]models.MentorInvitation, error) {
	rows, err := r.pool.Query(ctx, listPendingSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MentorInvitation
	for rows.Next() {
		var inv models.MentorInvitation
		if err := rows.Scan(&inv.ID, &inv.Email, &inv.Token, &inv.InvitedBy,
			&inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
