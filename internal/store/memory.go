package store

import (
	"context"
	"sync"

	"github.com/couchcryptid/frcm-service/internal/domain"
)

// MemoryStore keeps entries in process memory. It is meant for tests and local
// development.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[domain.Fingerprint]*CacheEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[domain.Fingerprint]*CacheEntry)}
}

func (s *MemoryStore) Has(_ context.Context, fp domain.Fingerprint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[fp]
	return ok, nil
}

func (s *MemoryStore) Get(_ context.Context, fp domain.Fingerprint) (*CacheEntry, error) {
	s.mu.RLock()
	e, ok := s.entries[fp]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if err := e.verify(fp); err != nil {
		return nil, err
	}
	return clone(e), nil
}

func (s *MemoryStore) Put(_ context.Context, fp domain.Fingerprint, weather domain.WeatherSeries, risk domain.RiskSeries) error {
	entry, err := newEntry(fp, weather, risk)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[fp]; ok {
		if existing.sameContent(risk) {
			return nil
		}
		return conflict(fp)
	}
	s.entries[fp] = entry
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
