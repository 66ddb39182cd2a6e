// Package comment manages discussion notes attached to a case or to an
// evidence item. A comment has exactly one parent and inherits its
// visibility from it.
package comment

import (
	"time"

	"custodia/pkg/domain"
)

// Comment is one note. Exactly one of CaseID/EvidenceID is set.
type Comment struct {
	ID         domain.CommentID
	CaseID     *domain.CaseID
	EvidenceID *domain.EvidenceID
	Author     domain.PrincipalID
	Body       string
	CreatedAt  time.Time
}

// AddInput carries the fields a caller supplies. Exactly one of
// CaseID/EvidenceID must be set; anything else is a validation error.
type AddInput struct {
	CaseID     *domain.CaseID
	EvidenceID *domain.EvidenceID
	Body       string
}
