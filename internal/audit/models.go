// Package audit records every state-changing action as an immutable entry.
// Entries are written in the same unit of work as the mutation that triggers
// them: a mutation without its entry, or an entry without its mutation, can
// never commit.
package audit

import (
	"time"

	"custodia/pkg/domain"
)

// Entry is one audit record. Immutable once created; the package exposes no
// update or delete path.
type Entry struct {
	ID           domain.AuditEntryID
	Principal    domain.PrincipalID
	Action       domain.AuditAction
	ResourceType domain.ResourceType
	ResourceID   string
	// Details is a bounded structured payload; every value is truncated to
	// the recorder's cap before storage so free text (comment bodies, notes)
	// cannot grow the log without bound.
	Details   map[string]string
	Timestamp time.Time
}

// ListFilters narrows a ListRecent query. Zero values mean "any".
type ListFilters struct {
	ResourceType domain.ResourceType
	Action       domain.AuditAction
}
