package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is a process-local LRU with per-entry expiry. Expired entries are
// dropped lazily on read.
type MemoryStore struct {
	lru *lru.Cache[string, memoryEntry]
	now func() time.Time
}

// NewMemoryStore returns a store holding at most size entries
func NewMemoryStore(size int) (*MemoryStore, error) {
	c, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{lru: c, now: time.Now}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(s.now()) {
		s.lru.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value; ttl <= 0 keeps it until evicted
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.lru.Add(key, e)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.lru.Remove(k)
	}
	return nil
}

// Len returns the number of entries, expired ones included
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}
