package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/learnlive/backend/internal/middleware"
	"github.com/learnlive/backend/internal/models"
)

// TokenIssuer signs JWTs for authenticated users.
type TokenIssuer struct {
	secret      []byte
	expireHours int
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(secret string, expireHours int) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), expireHours: expireHours}
}

// Issue returns a signed token for the user.
func (t *TokenIssuer) Issue(u *models.User) (string, error) {
	now := time.Now()
	claims := middleware.Claims{
		UserID: u.ID.String(),
		Email:  u.Email,
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(t.expireHours) * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}
