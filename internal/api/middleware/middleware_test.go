package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formaworks/forma-api/internal/api/shared"
	"github.com/formaworks/forma-api/internal/config"
	"github.com/formaworks/forma-api/internal/service/auth"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func newTestTokens(t *testing.T) auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService(config.AuthConfig{
		JWTSecret:        testSigningKey,
		TokenLifetimeMin: 60,
	})
	require.NoError(t, err)
	return tokens
}

func okHandler(gotUserID *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotUserID != nil {
			*gotUserID = shared.GetUserID(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateBearerToken(t *testing.T) {
	t.Parallel()

	tokens := newTestTokens(t)
	token, err := tokens.GenerateToken(context.Background(), "user-42")
	require.NoError(t, err)

	mw := NewAuthMiddleware(tokens, auth.NewAPIKeyVerifier(""))

	var gotUserID string
	handler := mw.Authenticate(okHandler(&gotUserID))

	req := httptest.NewRequest(http.MethodGet, "/api/generate/status/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", gotUserID)
}

func TestAuthenticateAPIKey(t *testing.T) {
	t.Parallel()

	mw := NewAuthMiddleware(newTestTokens(t), auth.NewAPIKeyVerifier("service-key"))
	handler := mw.Authenticate(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "service-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateRejections(t *testing.T) {
	t.Parallel()

	mw := NewAuthMiddleware(newTestTokens(t), auth.NewAPIKeyVerifier(""))
	handler := mw.Authenticate(okHandler(nil))

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic dXNlcjpwYXNz"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRateLimiterFixedWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))

	// Independent callers do not share a budget.
	assert.True(t, limiter.Allow("b"))

	// A new window resets the count.
	now = now.Add(time.Minute)
	assert.True(t, limiter.Allow("a"))
}

func TestRateLimiterMiddleware(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(1, time.Minute)
	handler := limiter.Limit(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "caller")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different caller still gets through.
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.9:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTraceMiddlewareSetsTraceID(t *testing.T) {
	t.Parallel()

	var traceID string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, traceID, 32)
}
