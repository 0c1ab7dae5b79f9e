package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps entries in a map guarded by a mutex.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key]Entry), now: time.Now}
}

// Name implements [Namer].
func (s *MemoryStore) Name() string { return "memory" }

// Get returns a copy of the stored entry.
func (s *MemoryStore) Get(ctx context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	e.Payload = slices.Clone(e.Payload)
	return &e, nil
}

// Put stores a copy of payload.
func (s *MemoryStore) Put(ctx context.Context, key Key, payload []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	e := Entry{Key: key, Payload: slices.Clone(payload), StoredAt: s.now()}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// IsFresh checks the stored timestamp without copying the payload.
func (s *MemoryStore) IsFresh(ctx context.Context, key Key, p Policy) (bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || p.ForceRefresh {
		return false, nil
	}
	return p.Fresh(e.StoredAt, s.now()), nil
}

// Delete removes the entry for key.
func (s *MemoryStore) Delete(ctx context.Context, key Key) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Clear drops every entry.
func (s *MemoryStore) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	n := len(s.entries)
	clear(s.entries)
	s.mu.Unlock()
	return n, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close does nothing.
func (s *MemoryStore) Close() error {
	return nil
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Clearer = (*MemoryStore)(nil)
)
