package principal

import (
	"context"

	"custodia/pkg/domain"
)

// Store persists directory records.
type Store interface {
	// Insert adds a record; sentinel.ErrConflict on a duplicate username.
	Insert(ctx context.Context, record Record) error
	// FindByUsername returns a record; sentinel.ErrNotFound when absent.
	FindByUsername(ctx context.Context, username string) (Record, error)
	// FindByID returns a record; sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, id domain.PrincipalID) (Record, error)
	// Exists reports whether the principal id is in the directory.
	Exists(ctx context.Context, id domain.PrincipalID) (bool, error)
}
