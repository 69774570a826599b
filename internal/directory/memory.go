package directory

import (
	"context"
	"sync"
)

// MemoryStore is a config-seeded in-memory directory. Used in standalone
// mode and as the test backend.
type MemoryStore struct {
	mu    sync.RWMutex
	users []Identity
}

// NewMemoryStore seeds a memory directory. Records are normalized on the
// way in so Lookup is a straight comparison.
func NewMemoryStore(users []Identity) *MemoryStore {
	normalized := make([]Identity, 0, len(users))
	for _, u := range users {
		normalized = append(normalized, u.Normalized())
	}
	return &MemoryStore{users: normalized}
}

// Add inserts one record. Test helper and onboarding hook.
func (s *MemoryStore) Add(u Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u.Normalized())
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, identifier string) (*Identity, error) {
	norm := NormalizeIdentifier(identifier)
	if norm == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.users {
		if s.users[i].Matches(norm) {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
