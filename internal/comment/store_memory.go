package comment

import (
	"context"
	"sort"
	"sync"

	"custodia/internal/policy"
	"custodia/pkg/domain"
	"custodia/pkg/sentinel"
)

// InMemoryStore keeps comments in memory for unit tests and local
// development.
type InMemoryStore struct {
	mu       sync.RWMutex
	comments map[domain.CommentID]Comment
}

// NewInMemoryStore builds an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{comments: make(map[domain.CommentID]Comment)}
}

// Insert adds a comment.
func (s *InMemoryStore) Insert(_ context.Context, c Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.ID] = c
	return nil
}

// FindByID looks a comment up by id.
func (s *InMemoryStore) FindByID(_ context.Context, id domain.CommentID) (Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return Comment{}, sentinel.ErrNotFound
	}
	return c, nil
}

// ListForCase returns a case's comments, newest first.
func (s *InMemoryStore) ListForCase(_ context.Context, caseID domain.CaseID) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(c Comment) bool {
		return c.CaseID != nil && *c.CaseID == caseID
	}), nil
}

// ListForEvidence returns an item's comments, newest first.
func (s *InMemoryStore) ListForEvidence(_ context.Context, evidenceID domain.EvidenceID) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(c Comment) bool {
		return c.EvidenceID != nil && *c.EvidenceID == evidenceID
	}), nil
}

// CommentRelations satisfies the policy package's CommentRelationReader.
func (s *InMemoryStore) CommentRelations(_ context.Context, id domain.CommentID) (policy.CommentRelations, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return policy.CommentRelations{}, sentinel.ErrNotFound
	}
	return policy.CommentRelations{CaseID: c.CaseID, EvidenceID: c.EvidenceID}, nil
}

func (s *InMemoryStore) collect(keep func(Comment) bool) []Comment {
	var out []Comment
	for _, c := range s.comments {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
