// Package principal is the directory of authenticated actors and the
// identity adapter that turns a verified credential into a
// {principal id, role} pair. The core trusts the resulting principal for a
// single evaluation and never sees the credential itself.
package principal

import (
	"time"

	"custodia/pkg/domain"
)

// Record is one directory entry.
type Record struct {
	ID           domain.PrincipalID
	Username     string
	Role         domain.Role
	PasswordHash []byte
	CreatedAt    time.Time
}

// Principal converts the record into the policy-facing principal.
func (r Record) Principal() domain.Principal {
	return domain.Principal{ID: r.ID, Role: r.Role}
}
