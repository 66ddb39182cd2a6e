package audit

import (
	"context"

	"custodia/pkg/domain"
)

// Store persists audit entries. Append-only: implementations expose no
// update or delete operation.
type Store interface {
	// Append writes one entry. Implementations must honor the ambient
	// transaction from context so the entry commits with its mutation.
	Append(ctx context.Context, entry Entry) error
	// ListRecent returns entries newest first, bounded by limit.
	ListRecent(ctx context.Context, filters ListFilters, limit int) ([]Entry, error)
	// ListRecentForPrincipal is ListRecent restricted to one principal's
	// own entries.
	ListRecentForPrincipal(ctx context.Context, principal domain.PrincipalID, filters ListFilters, limit int) ([]Entry, error)
}
