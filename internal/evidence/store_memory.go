package evidence

import (
	"context"
	"sort"
	"sync"

	"custodia/internal/policy"
	"custodia/pkg/domain"
	"custodia/pkg/sentinel"
)

// InMemoryStore keeps evidence in memory for unit tests and local development.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[domain.EvidenceID]Item
	tags  map[domain.EvidenceID]map[domain.TagID]struct{}
}

// NewInMemoryStore builds an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		items: make(map[domain.EvidenceID]Item),
		tags:  make(map[domain.EvidenceID]map[domain.TagID]struct{}),
	}
}

// Insert adds an item.
func (s *InMemoryStore) Insert(_ context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

// FindByID looks an item up by id.
func (s *InMemoryStore) FindByID(_ context.Context, id domain.EvidenceID) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return Item{}, sentinel.ErrNotFound
	}
	return item, nil
}

// UpdateStatus applies an optimistic-locked status change.
func (s *InMemoryStore) UpdateStatus(_ context.Context, id domain.EvidenceID, status domain.EvidenceStatus, version int64) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return Item{}, sentinel.ErrNotFound
	}
	if item.Version != version {
		return Item{}, sentinel.ErrVersionMismatch
	}
	item.Status = status
	item.Version++
	s.items[id] = item
	return item, nil
}

// BumpVersion advances the version column.
func (s *InMemoryStore) BumpVersion(_ context.Context, id domain.EvidenceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	item.Version++
	s.items[id] = item
	return nil
}

// ListForCase returns the case's items, newest first.
func (s *InMemoryStore) ListForCase(_ context.Context, caseID domain.CaseID) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Item
	for _, item := range s.items {
		if item.CaseID == caseID {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// AttachTag associates a tag with an item.
func (s *InMemoryStore) AttachTag(_ context.Context, id domain.EvidenceID, tagID domain.TagID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return sentinel.ErrNotFound
	}
	if s.tags[id] == nil {
		s.tags[id] = make(map[domain.TagID]struct{})
	}
	s.tags[id][tagID] = struct{}{}
	return nil
}

// DetachTag removes an association.
func (s *InMemoryStore) DetachTag(_ context.Context, id domain.EvidenceID, tagID domain.TagID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tags[id][tagID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.tags[id], tagID)
	return nil
}

// TagsFor returns the tag ids associated with an item.
func (s *InMemoryStore) TagsFor(_ context.Context, id domain.EvidenceID) ([]domain.TagID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TagID, 0, len(s.tags[id]))
	for tagID := range s.tags[id] {
		out = append(out, tagID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// EvidenceRelations satisfies the policy package's EvidenceRelationReader.
// Custodians are merged in by the relation source, not here.
func (s *InMemoryStore) EvidenceRelations(_ context.Context, id domain.EvidenceID) (policy.EvidenceRelations, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return policy.EvidenceRelations{}, sentinel.ErrNotFound
	}
	return policy.EvidenceRelations{
		CaseID:   item.CaseID,
		Uploader: item.Uploader,
		Version:  item.Version,
	}, nil
}
