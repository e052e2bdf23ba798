package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/formaworks/forma-api/internal/api/shared"
	"github.com/formaworks/forma-api/internal/service/auth"
)

// AuthMiddleware authenticates requests. Two credentials are accepted: a
// Bearer JWT in the Authorization header (user-scoped calls) or the static
// service key in X-API-Key (machine callers).
type AuthMiddleware struct {
	tokens auth.TokenService
	apiKey *auth.APIKeyVerifier
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(tokens auth.TokenService, apiKey *auth.APIKeyVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		apiKey: apiKey,
	}
}

// Authenticate validates the request's credential and, for token auth,
// adds the caller id to the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get("X-API-Key"); key != "" {
			if err := m.apiKey.Verify(key); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid API key", err)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := m.tokens.ValidateToken(r.Context(), parts[1])
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenNotYetValid):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			default:
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), shared.UserIDContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
