package cache

import (
	"sort"
	"sync"
	"time"
)

// localEntry is one memoized value with its expiry bound.
type localEntry struct {
	data      []byte
	createdAt time.Time
	expiresAt time.Time
}

// localStore is the bounded in-process store the cache degrades to when the
// shared store is unreachable. Entries past expiry are logically absent even
// before they are physically reclaimed. Eviction is TTL-biased rather than
// LRU: writes first purge expired entries, then drop soonest-to-expire
// entries until the store is back under its entry limit.
type localStore struct {
	mu         sync.Mutex
	entries    map[string]localEntry
	maxEntries int
	now        func() time.Time
}

func newLocalStore(maxEntries int) *localStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &localStore{
		entries:    make(map[string]localEntry),
		maxEntries: maxEntries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// get returns the stored value, treating expired entries as absent and
// reclaiming them on sight.
func (s *localStore) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.After(s.now()) {
		delete(s.entries, key)
		return nil, false
	}
	return entry.data, true
}

// set stores the value and enforces the entry bound.
func (s *localStore) set(key string, data []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.entries[key] = localEntry{
		data:      data,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}

	s.purgeExpiredLocked(now)
	s.evictOverflowLocked()
}

func (s *localStore) delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

func (s *localStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]localEntry)
}

// len reports the number of live (non-expired) entries.
func (s *localStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, entry := range s.entries {
		if entry.expiresAt.After(now) {
			n++
		}
	}
	return n
}

func (s *localStore) purgeExpiredLocked(now time.Time) {
	for key, entry := range s.entries {
		if !entry.expiresAt.After(now) {
			delete(s.entries, key)
		}
	}
}

// evictOverflowLocked removes entries in ascending expiry order until the
// store is within its configured bound.
func (s *localStore) evictOverflowLocked() {
	overflow := len(s.entries) - s.maxEntries
	if overflow <= 0 {
		return
	}

	type keyed struct {
		key       string
		expiresAt time.Time
	}
	ordered := make([]keyed, 0, len(s.entries))
	for key, entry := range s.entries {
		ordered = append(ordered, keyed{key: key, expiresAt: entry.expiresAt})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].expiresAt.Before(ordered[j].expiresAt)
	})

	for i := 0; i < overflow; i++ {
		delete(s.entries, ordered[i].key)
	}
}
