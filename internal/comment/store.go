package comment

import (
	"context"

	"custodia/pkg/domain"
)

// Store persists comments.
type Store interface {
	// Insert adds a comment.
	Insert(ctx context.Context, c Comment) error
	// FindByID returns a comment; sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, id domain.CommentID) (Comment, error)
	// ListForCase returns a case's comments, newest first.
	ListForCase(ctx context.Context, caseID domain.CaseID) ([]Comment, error)
	// ListForEvidence returns an item's comments, newest first.
	ListForEvidence(ctx context.Context, evidenceID domain.EvidenceID) ([]Comment, error)
}
