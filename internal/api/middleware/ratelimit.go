package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/formaworks/forma-api/internal/api/shared"
)

// RateLimiter applies a fixed-window request budget per caller. The caller
// key is the API key or bearer credential when present, the remote address
// otherwise.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*rateWindow

	now func() time.Time
}

type rateWindow struct {
	start time.Time
	count int
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// Allow records a request for key and reports whether it fits the budget.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		// Window rollover doubles as cleanup for stale entries under the
		// same key; unrelated stale keys are reaped here too.
		l.reapLocked(now)
		l.windows[key] = &rateWindow{start: now, count: 1}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// reapLocked drops windows that ended before now. Caller holds l.mu.
func (l *RateLimiter) reapLocked(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, key)
		}
	}
}

// Limit is the middleware wrapper around Allow.
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(callerKey(r)) {
			shared.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerKey identifies the caller for rate accounting.
func callerKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return "key:" + key
	}
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		return "tok:" + authHeader
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
