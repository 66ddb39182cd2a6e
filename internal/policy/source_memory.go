package policy

import (
	"context"

	"custodia/pkg/domain"
)

// Relation reader interfaces implemented by the in-memory entity stores.
// Defined here so the stores satisfy them implicitly.
type (
	CaseRelationReader interface {
		CaseRelations(ctx context.Context, id domain.CaseID) (CaseRelations, error)
	}
	EvidenceRelationReader interface {
		EvidenceRelations(ctx context.Context, id domain.EvidenceID) (EvidenceRelations, error)
	}
	CommentRelationReader interface {
		CommentRelations(ctx context.Context, id domain.CommentID) (CommentRelations, error)
	}
	CustodianReader interface {
		Custodians(ctx context.Context, id domain.EvidenceID) ([]domain.PrincipalID, error)
	}
)

// MemoryRelationSource composes the in-memory stores into a relation source
// for unit tests and local development. Memory stores serve each read from
// their current state under a single mutex, which is consistent enough for
// the single-process case.
type MemoryRelationSource struct {
	Cases    CaseRelationReader
	Evidence EvidenceRelationReader
	Comments CommentRelationReader
	Custody  CustodianReader
}

// Snapshot returns a view over the live stores; release is a no-op.
func (s *MemoryRelationSource) Snapshot(_ context.Context) (Snapshot, func(), error) {
	return memorySnapshot{src: s}, func() {}, nil
}

type memorySnapshot struct {
	src *MemoryRelationSource
}

func (s memorySnapshot) Case(ctx context.Context, id domain.CaseID) (CaseRelations, error) {
	return s.src.Cases.CaseRelations(ctx, id)
}

func (s memorySnapshot) Evidence(ctx context.Context, id domain.EvidenceID) (EvidenceRelations, error) {
	rel, err := s.src.Evidence.EvidenceRelations(ctx, id)
	if err != nil {
		return EvidenceRelations{}, err
	}
	// Custodians live in the ledger store; merge them in fresh.
	if s.src.Custody != nil {
		custodians, err := s.src.Custody.Custodians(ctx, id)
		if err != nil {
			return EvidenceRelations{}, err
		}
		rel.Custodians = custodians
	}
	return rel, nil
}

func (s memorySnapshot) Comment(ctx context.Context, id domain.CommentID) (CommentRelations, error) {
	return s.src.Comments.CommentRelations(ctx, id)
}
