// Package authx provides JWT authentication utilities
package authx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken indicates the token is malformed or invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidTokenType indicates the token type doesn't match expected type
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrMissingSecret indicates no signing secret was configured
	ErrMissingSecret = errors.New("jwt secret not set")
)

// TokenType represents the type of JWT token
type TokenType string

// AccessToken represents a short-lived access token
const AccessToken TokenType = "access"

// Claims represents JWT claims with user information
type Claims struct {
	jwt.RegisteredClaims
	Role   string    `json:"role"`
	Type   TokenType `json:"type"`
	UserID uuid.UUID `json:"user_id"`
}

// GenerateAccessToken creates a new JWT access token signed with secret
func GenerateAccessToken(secret string, userID uuid.UUID, role string, expiry time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		Type:   AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(secret, tokenString string, expectedType TokenType) (*Claims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Type != expectedType {
		return nil, ErrInvalidTokenType
	}

	return claims, nil
}
