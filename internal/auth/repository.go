package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnlive/backend/internal/models"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailTaken is returned when registering with an existing email.
var ErrEmailTaken = errors.New("email already registered")

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const createUserSQL = `
INSERT INTO users (email, password_hash, full_name, role)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at`

// Create inserts a new user. Returns ErrEmailTaken on duplicate email.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, u.Email,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrEmailTaken
	}
	return r.pool.QueryRow(ctx, createUserSQL,
		u.Email, u.Password, u.FullName, u.Role,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

const getUserByEmailSQL = `
SELECT id, email, password_hash, full_name, role, COALESCE(bio, ''), COALESCE(avatar_url, ''), created_at, updated_at
FROM users WHERE email = $1`

// GetByEmail looks up a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	err := r.pool.QueryRow(ctx, getUserByEmailSQL, email).Scan(
		&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.Bio, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

const getUserByIDSQL = `
SELECT id, email, password_hash, full_name, role, COALESCE(bio, ''), COALESCE(avatar_url, ''), created_at, updated_at
FROM users WHERE id = $1`

// GetByID looks up a user by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := r.pool.QueryRow(ctx, getUserByIDSQL, id).Scan(
		&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.Bio, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

const updateProfileSQL = `
UPDATE users SET
	full_name = COALESCE($2, full_name),
	bio = COALESCE($3, bio),
	avatar_url = COALESCE($4, avatar_url),
	updated_at = NOW()
WHERE id = $1
RETURNING id, email, password_hash, full_name, role, COALESCE(bio, ''), COALESCE(avatar_url, ''), created_at, updated_at`

// UpdateProfile patches profile fields; nil fields are left unchanged.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, bio, avatarURL *string) (*models.User, error) {
	u := &models.User{}
	err := r.pool.QueryRow(ctx, updateProfileSQL, id, fullName, bio, avatarURL).Scan(
		&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.Bio, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

const promoteToMentorSQL = `UPDATE users SET role = 'mentor', updated_at = NOW() WHERE id = $1`

// PromoteToMentor upgrades a student account after an accepted invitation.
func (r *Repository) PromoteToMentor(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, promoteToMentorSQL, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
