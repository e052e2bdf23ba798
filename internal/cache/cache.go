// Package cache maps deterministic fingerprints of generation requests to
// previously produced results. It writes through to a shared remote store
// when one is reachable and degrades transparently to a bounded in-process
// store when it is not; cache unavailability is never fatal to the
// generation flow.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/formaworks/forma-api/internal/domain"
)

// SharedStore is the contract for the optional cross-instance cache store.
// The miss condition is reported separately from transport errors so the
// cache can tell "absent" apart from "unreachable".
type SharedStore interface {
	Get(ctx context.Context, key string) (data []byte, found bool, err error)
	SetWithTTL(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context, prefix string) error

	// Ping reports whether the store is currently reachable.
	Ping(ctx context.Context) error
}

// Stats describes the cache's current shape for diagnostics endpoints.
type Stats struct {
	SharedConfigured bool `json:"shared_configured"`
	SharedHealthy    bool `json:"shared_healthy"`
	LocalEntries     int  `json:"local_entries"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the cache's time source. Used by tests to simulate
// TTL expiry without real delay.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.local.now = now
	}
}

// WithHealthCheck overrides how the cache decides whether the shared store
// is reachable. The default pings the store.
func WithHealthCheck(healthy func(ctx context.Context) bool) Option {
	return func(c *Cache) {
		c.healthy = healthy
	}
}

// Cache is the two-tier deduplicating result cache. All methods are
// best-effort by contract: shared-store failures are logged and absorbed by
// the local tier, never surfaced to the generation flow.
type Cache struct {
	shared  SharedStore // nil when no shared store is configured
	local   *localStore
	ttl     time.Duration
	logger  *slog.Logger
	healthy func(ctx context.Context) bool
}

// New creates a Cache. shared may be nil, in which case only the bounded
// local store is used. defaultTTL bounds entry lifetime; maxLocalEntries
// bounds the degraded store.
func New(shared SharedStore, defaultTTL time.Duration, maxLocalEntries int, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}

	c := &Cache{
		shared: shared,
		local:  newLocalStore(maxLocalEntries),
		ttl:    defaultTTL,
		logger: logger.With(slog.String("component", "cache")),
	}
	c.healthy = func(ctx context.Context) bool {
		if c.shared == nil {
			return false
		}
		return c.shared.Ping(ctx) == nil
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultTTL returns the configured entry lifetime.
func (c *Cache) DefaultTTL() time.Duration {
	return c.ttl
}

// Get looks up a memoized result. A shared-store failure degrades silently
// to the local store; the second return is false on any miss.
func (c *Cache) Get(ctx context.Context, key string) (*domain.GenerationResult, bool) {
	if c.shared != nil {
		data, found, err := c.shared.Get(ctx, key)
		if err == nil {
			if !found {
				return nil, false
			}
			return c.decode(key, data)
		}
		c.logger.Warn("shared cache unreachable, degrading to local store",
			slog.String("op", "get"),
			slog.String("error", err.Error()))
	}

	data, found := c.local.get(key)
	if !found {
		return nil, false
	}
	return c.decode(key, data)
}

// Set memoizes a result under the given key. A zero ttl uses the configured
// default. Failures are logged, never returned.
func (c *Cache) Set(ctx context.Context, key string, result *domain.GenerationResult, ttl time.Duration) {
	if result == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("failed to encode cache value",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return
	}

	if c.shared != nil {
		if err := c.shared.SetWithTTL(ctx, key, data, ttl); err == nil {
			return
		} else {
			c.logger.Warn("shared cache unreachable, degrading to local store",
				slog.String("op", "set"),
				slog.String("error", err.Error()))
		}
	}

	c.local.set(key, data, ttl)
}

// Delete removes a key from whichever tier currently holds it. Best effort.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c.shared != nil {
		if err := c.shared.Delete(ctx, key); err != nil {
			c.logger.Warn("shared cache delete failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
	c.local.delete(key)
}

// Clear drops every entry written by this service. Best effort.
func (c *Cache) Clear(ctx context.Context) {
	if c.shared != nil {
		if err := c.shared.Clear(ctx, KeyPrefix); err != nil {
			c.logger.Warn("shared cache clear failed",
				slog.String("error", err.Error()))
		}
	}
	c.local.clear()
}

// Stats reports the cache's current state.
func (c *Cache) Stats(ctx context.Context) Stats {
	return Stats{
		SharedConfigured: c.shared != nil,
		SharedHealthy:    c.shared != nil && c.healthy(ctx),
		LocalEntries:     c.local.len(),
	}
}

func (c *Cache) decode(key string, data []byte) (*domain.GenerationResult, bool) {
	var result domain.GenerationResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("discarding undecodable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, false
	}
	return &result, true
}
