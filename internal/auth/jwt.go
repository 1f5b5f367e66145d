// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/CipherStudio/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of an issued token.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims is the JWT payload: the standard claims plus the user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// TokenManager signs and verifies HS256 tokens with a shared secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager returns a TokenManager. A non-positive ttl falls back to
// DefaultTokenTTL.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken returns a signed token embedding userID.
func (m *TokenManager) GenerateToken(userID string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// UserIDFromToken verifies tokenString and returns the embedded user id.
// Expired, malformed and badly signed tokens all yield common.ErrInvalidToken.
func (m *TokenManager) UserIDFromToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", errors.Join(common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}
	return claims.UserID, nil
}
