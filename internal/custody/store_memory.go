package custody

import (
	"context"
	"sort"
	"sync"

	"custodia/pkg/domain"
)

// InMemoryStore keeps custody chains in memory for unit tests and local
// development.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[domain.EvidenceID][]Entry
}

// NewInMemoryStore builds an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[domain.EvidenceID][]Entry)}
}

// AppendChained holds the store lock across the latest-read and the insert
// so concurrent appends for the same item serialize.
func (s *InMemoryStore) AppendChained(_ context.Context, evidenceID domain.EvidenceID, build func(prev *Entry) (Entry, error)) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.entries[evidenceID]
	var prev *Entry
	if len(chain) > 0 {
		last := chain[len(chain)-1]
		prev = &last
	}
	entry, err := build(prev)
	if err != nil {
		return Entry{}, err
	}
	s.entries[evidenceID] = append(chain, entry)
	return entry, nil
}

// ListNewestFirst returns entries ordered newest first.
func (s *InMemoryStore) ListNewestFirst(_ context.Context, evidenceID domain.EvidenceID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := append([]Entry{}, s.entries[evidenceID]...)
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Timestamp.After(chain[j].Timestamp)
	})
	return chain, nil
}

// ListOldestFirst returns entries in chain order.
func (s *InMemoryStore) ListOldestFirst(_ context.Context, evidenceID domain.EvidenceID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.entries[evidenceID]...), nil
}

// Custodians returns every principal that ever received custody of the
// item. Satisfies the policy package's CustodianReader so the in-memory
// relation source reads the ledger fresh on each evaluation.
func (s *InMemoryStore) Custodians(_ context.Context, evidenceID domain.EvidenceID) ([]domain.PrincipalID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[domain.PrincipalID]bool)
	var custodians []domain.PrincipalID
	for _, e := range s.entries[evidenceID] {
		if e.ToPrincipal == nil || seen[*e.ToPrincipal] {
			continue
		}
		seen[*e.ToPrincipal] = true
		custodians = append(custodians, *e.ToPrincipal)
	}
	return custodians, nil
}
