// Package casefile manages investigative cases: the root entities that
// evidence, comments, and custody chains hang off. Cases are never deleted;
// they retire through the archived status.
package casefile

import (
	"time"

	"custodia/pkg/domain"
)

// Case is one investigative case. Version is the optimistic-lock column;
// every update must name the version it read.
type Case struct {
	ID               domain.CaseID
	Number           string // unique human-facing reference, e.g. "2026-0142"
	Title            string
	Description      string
	Creator          domain.PrincipalID
	LeadInvestigator *domain.PrincipalID
	AssignedTo       *domain.PrincipalID
	Status           domain.CaseStatus
	Priority         domain.CasePriority
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateInput carries the fields a caller supplies on creation.
type CreateInput struct {
	Number           string
	Title            string
	Description      string
	Priority         domain.CasePriority
	LeadInvestigator *domain.PrincipalID
	AssignedTo       *domain.PrincipalID
}

// UpdateInput carries a partial update. Nil fields are left unchanged.
// Version must equal the version the caller read; a mismatch means another
// writer got there first and surfaces as Conflict.
type UpdateInput struct {
	Title            *string
	Description      *string
	Status           *domain.CaseStatus
	Priority         *domain.CasePriority
	LeadInvestigator *domain.PrincipalID
	AssignedTo       *domain.PrincipalID
	Version          int64
}
