package auth

import (
	"time"

	"stockguard/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is who is calling and for which establishment.
type Identity struct {
	UserID          string      `json:"user_id"`
	EstablishmentID string      `json:"establishment_id"`
	Role            models.Role `json:"role"`
}

// Claims are issued by the identity provider; the API only verifies them.
type Claims struct {
	UserID          string      `json:"user_id"`
	Email           string      `json:"email"`
	Role            models.Role `json:"role"`
	EstablishmentID string      `json:"establishment_id"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token. Used by tooling and tests.
func GenerateToken(secret string, id Identity, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:          id.UserID,
		Email:           email,
		Role:            id.Role,
		EstablishmentID: id.EstablishmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
