package casefile

import (
	"context"
	"sort"
	"sync"

	"custodia/internal/policy"
	"custodia/pkg/domain"
	"custodia/pkg/sentinel"
)

// InMemoryStore keeps cases in memory for unit tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	cases    map[domain.CaseID]Case
	byNumber map[string]domain.CaseID
}

// NewInMemoryStore builds an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cases:    make(map[domain.CaseID]Case),
		byNumber: make(map[string]domain.CaseID),
	}
}

// Insert adds a case, rejecting duplicate case numbers.
func (s *InMemoryStore) Insert(_ context.Context, c Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byNumber[c.Number]; taken {
		return sentinel.ErrConflict
	}
	s.cases[c.ID] = c
	s.byNumber[c.Number] = c.ID
	return nil
}

// FindByID looks a case up by id.
func (s *InMemoryStore) FindByID(_ context.Context, id domain.CaseID) (Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return Case{}, sentinel.ErrNotFound
	}
	return c, nil
}

// Update applies an optimistic-locked write.
func (s *InMemoryStore) Update(_ context.Context, c Case) (Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.cases[c.ID]
	if !ok {
		return Case{}, sentinel.ErrNotFound
	}
	if current.Version != c.Version {
		return Case{}, sentinel.ErrVersionMismatch
	}
	c.Version++
	s.cases[c.ID] = c
	return c, nil
}

// ListAll returns every case, newest first.
func (s *InMemoryStore) ListAll(_ context.Context) ([]Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(Case) bool { return true }), nil
}

// ListForPrincipal returns cases the principal is related to, newest first.
func (s *InMemoryStore) ListForPrincipal(_ context.Context, p domain.PrincipalID) ([]Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(c Case) bool {
		if c.Creator == p {
			return true
		}
		if c.LeadInvestigator != nil && *c.LeadInvestigator == p {
			return true
		}
		return c.AssignedTo != nil && *c.AssignedTo == p
	}), nil
}

// CaseRelations satisfies the policy package's CaseRelationReader.
func (s *InMemoryStore) CaseRelations(_ context.Context, id domain.CaseID) (policy.CaseRelations, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return policy.CaseRelations{}, sentinel.ErrNotFound
	}
	return policy.CaseRelations{
		Creator:          c.Creator,
		LeadInvestigator: c.LeadInvestigator,
		AssignedTo:       c.AssignedTo,
		Version:          c.Version,
	}, nil
}

func (s *InMemoryStore) collect(keep func(Case) bool) []Case {
	var out []Case
	for _, c := range s.cases {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
