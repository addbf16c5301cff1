package storage

import (
	"context"
	"sync"
)

// MemoryStore is a Store held entirely in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get returns the stored value and whether it exists.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	dup := make([]byte, len(v))
	copy(dup, v)
	return dup, true, nil
}

// Put stores a copy of the value under key.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	dup := make([]byte, len(value))
	copy(dup, value)
	s.mu.Lock()
	s.values[key] = dup
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
