package casefile

import (
	"context"

	"custodia/pkg/domain"
)

// Store persists cases.
type Store interface {
	// Insert adds a case; sentinel.ErrConflict on a duplicate case number.
	Insert(ctx context.Context, c Case) error
	// FindByID returns a case; sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, id domain.CaseID) (Case, error)
	// Update persists the case iff the stored version equals c.Version,
	// then bumps it. sentinel.ErrVersionMismatch on a lost race,
	// sentinel.ErrNotFound when the row is gone.
	Update(ctx context.Context, c Case) (Case, error)
	// ListAll returns every case, newest first. Admin read path.
	ListAll(ctx context.Context) ([]Case, error)
	// ListForPrincipal returns cases the principal is related to (creator,
	// lead, or assignee), newest first.
	ListForPrincipal(ctx context.Context, p domain.PrincipalID) ([]Case, error)
}
