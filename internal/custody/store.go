package custody

import (
	"context"

	"custodia/pkg/domain"
)

// Store persists custody entries. Append-only: no update or delete
// operation exists.
type Store interface {
	// AppendChained builds and inserts one entry while the tail of the
	// chain is held stable: build receives the current latest entry (nil
	// for an empty chain) and returns the entry to insert. Implementations
	// serialize concurrent appends for the same evidence item so both
	// succeed with distinct, correctly ordered timestamps.
	AppendChained(ctx context.Context, evidenceID domain.EvidenceID, build func(prev *Entry) (Entry, error)) (Entry, error)
	// ListNewestFirst returns the item's entries ordered newest first.
	ListNewestFirst(ctx context.Context, evidenceID domain.EvidenceID) ([]Entry, error)
	// ListOldestFirst returns the item's entries in chain order.
	ListOldestFirst(ctx context.Context, evidenceID domain.EvidenceID) ([]Entry, error)
}
