package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formaworks/forma-api/internal/domain"
)

// fakeSharedStore is an in-memory SharedStore whose availability can be
// toggled to exercise the degradation path.
type fakeSharedStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	down    bool
}

func newFakeSharedStore() *fakeSharedStore {
	return &fakeSharedStore{entries: make(map[string][]byte)}
}

var errStoreDown = errors.New("connection refused")

func (s *fakeSharedStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, false, errStoreDown
	}
	data, ok := s.entries[key]
	return data, ok, nil
}

func (s *fakeSharedStore) SetWithTTL(_ context.Context, key string, data []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errStoreDown
	}
	s.entries[key] = data
	return nil
}

func (s *fakeSharedStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errStoreDown
	}
	delete(s.entries, key)
	return nil
}

func (s *fakeSharedStore) Clear(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errStoreDown
	}
	s.entries = make(map[string][]byte)
	return nil
}

func (s *fakeSharedStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errStoreDown
	}
	return nil
}

func (s *fakeSharedStore) setDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// fakeClock is a settable time source for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleResult() *domain.GenerationResult {
	return &domain.GenerationResult{
		TaskID:       uuid.New(),
		ModelRef:     "models/2025/03/01/abc.obj",
		FileFormat:   "obj",
		Downloadable: true,
		Provider:     "meshy",
	}
}

func TestCacheRoundTripLocal(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(nil, time.Hour, 10, nil, WithClock(clock.Now))
	ctx := context.Background()

	want := sampleResult()
	c.Set(ctx, "model:abc", want, 0)

	got, found := c.Get(ctx, "model:abc")
	require.True(t, found)
	assert.Equal(t, want.TaskID, got.TaskID)
	assert.Equal(t, want.ModelRef, got.ModelRef)

	// Past TTL the entry is logically absent.
	clock.Advance(time.Hour + time.Second)
	_, found = c.Get(ctx, "model:abc")
	assert.False(t, found)
}

func TestCacheMiss(t *testing.T) {
	t.Parallel()

	c := New(nil, time.Hour, 10, nil)
	_, found := c.Get(context.Background(), "model:unknown")
	assert.False(t, found)
}

func TestCacheSharedStorePreferred(t *testing.T) {
	t.Parallel()

	shared := newFakeSharedStore()
	c := New(shared, time.Hour, 10, nil)
	ctx := context.Background()

	c.Set(ctx, "model:abc", sampleResult(), 0)

	// The write landed in the shared tier, not the local one.
	assert.Equal(t, 0, c.local.len())
	_, found := c.Get(ctx, "model:abc")
	assert.True(t, found)
}

func TestCacheDegradesOnSharedFailure(t *testing.T) {
	t.Parallel()

	shared := newFakeSharedStore()
	shared.setDown(true)
	c := New(shared, time.Hour, 10, nil)
	ctx := context.Background()

	// Unreachable shared store is absorbed; the write goes local.
	want := sampleResult()
	c.Set(ctx, "model:abc", want, 0)

	got, found := c.Get(ctx, "model:abc")
	require.True(t, found)
	assert.Equal(t, want.TaskID, got.TaskID)

	stats := c.Stats(ctx)
	assert.True(t, stats.SharedConfigured)
	assert.False(t, stats.SharedHealthy)
	assert.Equal(t, 1, stats.LocalEntries)
}

func TestCacheLocalEvictionBound(t *testing.T) {
	t.Parallel()

	const maxEntries = 5
	clock := newFakeClock()
	c := New(nil, time.Hour, maxEntries, nil, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		c.Set(ctx, fmt.Sprintf("model:%02d", i), sampleResult(), time.Duration(i+1)*time.Minute)
		require.LessOrEqual(t, c.local.len(), maxEntries)
	}
}

func TestCacheEvictsSoonestExpiryFirst(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(nil, time.Hour, 2, nil, WithClock(clock.Now))
	ctx := context.Background()

	c.Set(ctx, "model:soon", sampleResult(), time.Minute)
	c.Set(ctx, "model:later", sampleResult(), time.Hour)
	c.Set(ctx, "model:latest", sampleResult(), 2*time.Hour)

	_, found := c.Get(ctx, "model:soon")
	assert.False(t, found, "soonest-to-expire entry should have been evicted")
	_, found = c.Get(ctx, "model:later")
	assert.True(t, found)
	_, found = c.Get(ctx, "model:latest")
	assert.True(t, found)
}

func TestCacheDeleteAndClear(t *testing.T) {
	t.Parallel()

	shared := newFakeSharedStore()
	c := New(shared, time.Hour, 10, nil)
	ctx := context.Background()

	c.Set(ctx, "model:abc", sampleResult(), 0)
	c.Delete(ctx, "model:abc")
	_, found := c.Get(ctx, "model:abc")
	assert.False(t, found)

	c.Set(ctx, "model:one", sampleResult(), 0)
	c.Set(ctx, "model:two", sampleResult(), 0)
	c.Clear(ctx)
	_, found = c.Get(ctx, "model:one")
	assert.False(t, found)
	_, found = c.Get(ctx, "model:two")
	assert.False(t, found)
}

func TestCacheUndecodableEntryIsMiss(t *testing.T) {
	t.Parallel()

	shared := newFakeSharedStore()
	shared.entries["model:bad"] = []byte("{not json")
	c := New(shared, time.Hour, 10, nil)

	_, found := c.Get(context.Background(), "model:bad")
	assert.False(t, found)
}
