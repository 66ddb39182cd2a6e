package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "custodia/pkg/domainerrors"
)

// Every enum is a closed set: parsing accepts the declared values and
// nothing else, including the empty string.
func TestEnums_ClosedSets(t *testing.T) {
	t.Run("case status", func(t *testing.T) {
		for _, s := range []string{"open", "active", "closed", "archived"} {
			parsed, err := ParseCaseStatus(s)
			require.NoError(t, err)
			assert.True(t, parsed.IsValid())
		}
		_, err := ParseCaseStatus("reopened")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = ParseCaseStatus("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("case priority", func(t *testing.T) {
		for _, s := range []string{"low", "medium", "high", "critical"} {
			parsed, err := ParseCasePriority(s)
			require.NoError(t, err)
			assert.True(t, parsed.IsValid())
		}
		_, err := ParseCasePriority("urgent")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("evidence status", func(t *testing.T) {
		for _, s := range []string{"pending", "verified", "archived", "disposed"} {
			parsed, err := ParseEvidenceStatus(s)
			require.NoError(t, err)
			assert.True(t, parsed.IsValid())
		}
		_, err := ParseEvidenceStatus("lost")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("custody action", func(t *testing.T) {
		for _, s := range []string{"created", "transferred", "accessed", "downloaded", "modified", "archived"} {
			parsed, err := ParseCustodyAction(s)
			require.NoError(t, err)
			assert.True(t, parsed.IsValid())
		}
		_, err := ParseCustodyAction("destroyed")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("resource type", func(t *testing.T) {
		for _, s := range []string{"case", "evidence", "comment", "tag", "custody_entry", "audit_entry", "principal"} {
			parsed, err := ParseResourceType(s)
			require.NoError(t, err)
			assert.True(t, parsed.IsValid())
		}
		_, err := ParseResourceType("session")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("audit action", func(t *testing.T) {
		parsed, err := ParseAuditAction("TransferCustody")
		require.NoError(t, err)
		assert.True(t, parsed.IsValid())
		// Audit actions are case-sensitive identifiers, not free text.
		_, err = ParseAuditAction("transfercustody")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("role", func(t *testing.T) {
		for _, s := range []string{"admin", "investigator", "analyst", "legal"} {
			parsed, err := ParseRole(s)
			require.NoError(t, err)
			assert.True(t, parsed.IsValid())
		}
		_, err := ParseRole("superuser")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestPrincipal_IsAdmin(t *testing.T) {
	admin := Principal{ID: NewPrincipalID(), Role: RoleAdmin}
	assert.True(t, admin.IsAdmin())

	for _, role := range []Role{RoleInvestigator, RoleAnalyst, RoleLegal} {
		p := Principal{ID: NewPrincipalID(), Role: role}
		assert.False(t, p.IsAdmin(), "role %s must not be admin", role)
	}
}
