package audit

import (
	"context"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
)

// DefaultListLimit bounds ListRecent when the caller passes no limit.
const DefaultListLimit = 50

// MaxListLimit is the hard ceiling for one page of audit entries.
const MaxListLimit = 500

// Query serves audit reads. Admins see everything; every other principal
// sees only entries they produced. Denial never degrades into an empty
// result: non-admin queries are scoped, not filtered after the fact.
type Query struct {
	store Store
}

// NewQuery builds the audit read service.
func NewQuery(store Store) *Query {
	return &Query{store: store}
}

// ListRecent returns entries newest first, restricted by the audit read
// rule: own entries, or all entries for an admin.
func (q *Query) ListRecent(ctx context.Context, p domain.Principal, filters ListFilters, limit int) ([]Entry, error) {
	if p.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "audit queries require a principal")
	}
	if filters.ResourceType != "" && !filters.ResourceType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown resource type: %s", filters.ResourceType)
	}
	if filters.Action != "" && !filters.Action.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown audit action: %s", filters.Action)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var (
		entries []Entry
		err     error
	)
	if p.IsAdmin() {
		entries, err = q.store.ListRecent(ctx, filters, limit)
	} else {
		entries, err = q.store.ListRecentForPrincipal(ctx, p.ID, filters, limit)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit entries")
	}
	return entries, nil
}
