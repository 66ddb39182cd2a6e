package tag

import (
	"context"
	"sort"
	"sync"

	"custodia/pkg/domain"
	"custodia/pkg/sentinel"
)

// InMemoryStore keeps tags in memory for unit tests and local development.
type InMemoryStore struct {
	mu     sync.RWMutex
	tags   map[domain.TagID]Tag
	byName map[string]domain.TagID
}

// NewInMemoryStore builds an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tags:   make(map[domain.TagID]Tag),
		byName: make(map[string]domain.TagID),
	}
}

// Insert adds a tag, rejecting duplicate names.
func (s *InMemoryStore) Insert(_ context.Context, t Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName[t.Name]; taken {
		return sentinel.ErrConflict
	}
	s.tags[t.ID] = t
	s.byName[t.Name] = t.ID
	return nil
}

// FindByID looks a tag up by id.
func (s *InMemoryStore) FindByID(_ context.Context, id domain.TagID) (Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tags[id]
	if !ok {
		return Tag{}, sentinel.ErrNotFound
	}
	return t, nil
}

// ListAll returns every tag, ordered by name.
func (s *InMemoryStore) ListAll(_ context.Context) ([]Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
