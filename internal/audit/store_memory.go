package audit

import (
	"context"
	"sort"
	"sync"

	"custodia/pkg/domain"
)

// InMemoryStore keeps audit entries in memory for unit tests and local
// development. Append-only by construction.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewInMemoryStore builds an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append stores one entry.
func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// ListRecent returns entries newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, filters ListFilters, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filtered(func(Entry) bool { return true }, filters, limit), nil
}

// ListRecentForPrincipal returns one principal's entries newest first.
func (s *InMemoryStore) ListRecentForPrincipal(_ context.Context, principal domain.PrincipalID, filters ListFilters, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filtered(func(e Entry) bool { return e.Principal == principal }, filters, limit), nil
}

// All returns every entry in insertion order; test helper.
func (s *InMemoryStore) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.entries...)
}

func (s *InMemoryStore) filtered(keep func(Entry) bool, filters ListFilters, limit int) []Entry {
	var out []Entry
	for _, e := range s.entries {
		if !keep(e) {
			continue
		}
		if filters.ResourceType != "" && e.ResourceType != filters.ResourceType {
			continue
		}
		if filters.Action != "" && e.Action != filters.Action {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
