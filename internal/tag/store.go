package tag

import (
	"context"

	"custodia/pkg/domain"
)

// Store persists tags.
type Store interface {
	// Insert adds a tag; sentinel.ErrConflict on a duplicate name.
	Insert(ctx context.Context, t Tag) error
	// FindByID returns a tag; sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, id domain.TagID) (Tag, error)
	// ListAll returns every tag, ordered by name.
	ListAll(ctx context.Context) ([]Tag, error)
}
