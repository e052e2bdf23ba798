// Package auth provides token and API key verification for the HTTP surface.
package auth

import (
	"context"
	"time"
)

// TokenService defines operations for managing JWT access tokens.
type TokenService interface {
	// GenerateToken creates a signed access token for the given user.
	GenerateToken(ctx context.Context, userID string) (string, error)

	// ValidateToken validates an access token string and extracts its
	// claims. Returns ErrExpiredToken, ErrTokenNotYetValid or
	// ErrInvalidToken on failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the custom claims structure for the access tokens.
type Claims struct {
	// UserID is the identity the token was issued for.
	UserID string `json:"uid,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
