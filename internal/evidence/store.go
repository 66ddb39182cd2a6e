package evidence

import (
	"context"

	"custodia/pkg/domain"
)

// Store persists evidence items and the evidence-tag association.
type Store interface {
	// Insert adds an item. The parent case must exist.
	Insert(ctx context.Context, item Item) error
	// FindByID returns an item; sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, id domain.EvidenceID) (Item, error)
	// UpdateStatus sets the status iff the stored version equals version,
	// then bumps it. sentinel.ErrVersionMismatch on a lost race.
	UpdateStatus(ctx context.Context, id domain.EvidenceID, status domain.EvidenceStatus, version int64) (Item, error)
	// BumpVersion unconditionally advances the version column. Used when a
	// custody append changes the item's accessor set.
	BumpVersion(ctx context.Context, id domain.EvidenceID) error
	// ListForCase returns the case's items, newest first.
	ListForCase(ctx context.Context, caseID domain.CaseID) ([]Item, error)

	// AttachTag associates a tag with an item; idempotent.
	AttachTag(ctx context.Context, id domain.EvidenceID, tagID domain.TagID) error
	// DetachTag removes an association; sentinel.ErrNotFound when absent.
	DetachTag(ctx context.Context, id domain.EvidenceID, tagID domain.TagID) error
	// TagsFor returns the tag ids associated with an item.
	TagsFor(ctx context.Context, id domain.EvidenceID) ([]domain.TagID, error)
}
