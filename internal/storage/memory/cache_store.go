package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"crypto-price-bot/internal/storage"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// CacheStore is an in-memory implementation of storage.CacheStore.
// Expired entries are dropped lazily on read.
type CacheStore struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCacheStore creates a new in-memory cache store using the wall clock.
func NewCacheStore() *CacheStore {
	return NewCacheStoreWithClock(time.Now)
}

// NewCacheStoreWithClock creates a cache store with an injectable clock.
func NewCacheStoreWithClock(now func() time.Time) *CacheStore {
	return &CacheStore{
		entries: make(map[string]cacheEntry),
		now:     now,
	}
}

// Get returns the stored bytes if the key exists and has not expired.
func (s *CacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		if cur, still := s.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return bytes.Clone(e.value), true, nil
}

// Set stores value under key until ttl elapses.
func (s *CacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" || ttl <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = cacheEntry{
		value:     bytes.Clone(value),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Compile-time interface check
var _ storage.CacheStore = (*CacheStore)(nil)
