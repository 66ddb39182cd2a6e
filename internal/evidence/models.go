// Package evidence manages evidence items: the files and artifacts attached
// to a case. Every item carries a content hash taken at intake and a version
// column that moves whenever the item's accessor set can change.
package evidence

import (
	"time"

	"custodia/pkg/domain"
)

// Item is one evidence item. It belongs to exactly one case for its whole
// life; Version is the optimistic-lock column and the cache-invalidation key
// for access decisions about this item.
type Item struct {
	ID          domain.EvidenceID
	CaseID      domain.CaseID
	Uploader    domain.PrincipalID
	Name        string
	Description string
	ContentHash string // sha256 of the stored content, supplied at intake
	FileRef     string // opaque pointer into the blob store
	Status      domain.EvidenceStatus
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AddInput carries the fields a caller supplies at intake.
type AddInput struct {
	CaseID      domain.CaseID
	Name        string
	Description string
	ContentHash string
	FileRef     string
	Location    string // initial custody location, e.g. "intake locker 3"
}
