package principal

import (
	"context"
	"sync"

	"custodia/pkg/domain"
	"custodia/pkg/sentinel"
)

// InMemoryStore keeps directory records in memory for unit tests and local
// development.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[domain.PrincipalID]Record
	byName map[string]domain.PrincipalID
}

// NewInMemoryStore builds an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[domain.PrincipalID]Record),
		byName: make(map[string]domain.PrincipalID),
	}
}

// Insert adds a record, rejecting duplicate usernames.
func (s *InMemoryStore) Insert(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName[record.Username]; taken {
		return sentinel.ErrConflict
	}
	s.byID[record.ID] = record
	s.byName[record.Username] = record.ID
	return nil
}

// FindByUsername looks a record up by username.
func (s *InMemoryStore) FindByUsername(_ context.Context, username string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return Record{}, sentinel.ErrNotFound
	}
	return s.byID[id], nil
}

// FindByID looks a record up by id.
func (s *InMemoryStore) FindByID(_ context.Context, id domain.PrincipalID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byID[id]
	if !ok {
		return Record{}, sentinel.ErrNotFound
	}
	return record, nil
}

// Exists reports directory membership.
func (s *InMemoryStore) Exists(_ context.Context, id domain.PrincipalID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok, nil
}
