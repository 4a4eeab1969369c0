// Package keyvalue implements the key-value cache capability: a host that
// exposes get/set/delete to guests, backed by a pluggable store. The
// default backend is an in-process store with TTL expiry; entries are
// evicted by TTL, not by the callers.
package keyvalue

import (
	"context"
	"sync"
	"time"
)

// Store is the backend contract for the key-value capability. Stores are
// shared by many concurrent requests and manage their own locking.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type entry struct {
	value   []byte
	expires time.Time // zero = no expiry
}

// MemoryStore is a mutex-guarded in-process Store with TTL expiry.
// Expired entries are dropped on read.
type MemoryStore struct {
	entries map[string]entry
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the value for key, or (nil, false) on miss or expiry.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && s.now().After(e.expires) {
		s.mu.Lock()
		// re-check under the write lock; another writer may have replaced it
		if cur, still := s.entries[key]; still && !cur.expires.IsZero() && s.now().After(cur.expires) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set stores value under key. ttl of zero means no expiry.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Delete removes key. Idempotent.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of live entries, counting expired ones that have
// not been read yet.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
