package domain

import dErrors "custodia/pkg/domainerrors"

// Role is the closed set of principal roles. The set is exhaustive: policy
// rules switch on it and a new role must be given explicit rules.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleInvestigator Role = "investigator"
	RoleAnalyst      Role = "analyst"
	RoleLegal        Role = "legal"
)

// validRoles is the single source of truth for supported roles.
var validRoles = map[Role]bool{
	RoleAdmin:        true,
	RoleInvestigator: true,
	RoleAnalyst:      true,
	RoleLegal:        true,
}

// IsValid reports whether the role is one of the supported values.
func (r Role) IsValid() bool { return validRoles[r] }

// ParseRole constructs a Role from external input (JWT claim, seed file).
// Free-text roles are rejected here so a typo can never widen access.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown role: %s", s)
	}
	return r, nil
}

// Principal is an authenticated actor: an id plus a role. The core trusts it
// for a single evaluation; resolving it from a credential is the identity
// adapter's job.
type Principal struct {
	ID   PrincipalID
	Role Role
}

// IsAdmin reports whether the principal short-circuits every policy rule.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
