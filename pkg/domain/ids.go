package domain

import (
	"github.com/google/uuid"

	dErrors "custodia/pkg/domainerrors"
)

// Typed ids prevent cross-entity assignment at compile time. Construct via
// the Parse helpers at trust boundaries; direct casting bypasses validation.
type (
	PrincipalID    uuid.UUID
	CaseID         uuid.UUID
	EvidenceID     uuid.UUID
	CommentID      uuid.UUID
	TagID          uuid.UUID
	CustodyEntryID uuid.UUID
	AuditEntryID   uuid.UUID
)

func (id PrincipalID) String() string    { return uuid.UUID(id).String() }
func (id CaseID) String() string         { return uuid.UUID(id).String() }
func (id EvidenceID) String() string     { return uuid.UUID(id).String() }
func (id CommentID) String() string      { return uuid.UUID(id).String() }
func (id TagID) String() string          { return uuid.UUID(id).String() }
func (id CustodyEntryID) String() string { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string   { return uuid.UUID(id).String() }

func (id PrincipalID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CaseID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id EvidenceID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CommentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id TagID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id CustodyEntryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// NewPrincipalID returns a fresh random principal id.
func NewPrincipalID() PrincipalID { return PrincipalID(uuid.New()) }

// NewCaseID returns a fresh random case id.
func NewCaseID() CaseID { return CaseID(uuid.New()) }

// NewEvidenceID returns a fresh random evidence id.
func NewEvidenceID() EvidenceID { return EvidenceID(uuid.New()) }

// NewCommentID returns a fresh random comment id.
func NewCommentID() CommentID { return CommentID(uuid.New()) }

// NewTagID returns a fresh random tag id.
func NewTagID() TagID { return TagID(uuid.New()) }

// NewCustodyEntryID returns a fresh random custody entry id.
func NewCustodyEntryID() CustodyEntryID { return CustodyEntryID(uuid.New()) }

// NewAuditEntryID returns a fresh random audit entry id.
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

// parseUUID enforces the shared invariant: ids must be valid, non-nil UUIDs.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s id cannot be empty", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s id is not a valid UUID", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s id cannot be the nil UUID", kind)
	}
	return u, nil
}

// ParsePrincipalID validates external input into a PrincipalID.
func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := parseUUID(s, "principal")
	return PrincipalID(u), err
}

// ParseCaseID validates external input into a CaseID.
func ParseCaseID(s string) (CaseID, error) {
	u, err := parseUUID(s, "case")
	return CaseID(u), err
}

// ParseEvidenceID validates external input into an EvidenceID.
func ParseEvidenceID(s string) (EvidenceID, error) {
	u, err := parseUUID(s, "evidence")
	return EvidenceID(u), err
}

// ParseCommentID validates external input into a CommentID.
func ParseCommentID(s string) (CommentID, error) {
	u, err := parseUUID(s, "comment")
	return CommentID(u), err
}

// ParseTagID validates external input into a TagID.
func ParseTagID(s string) (TagID, error) {
	u, err := parseUUID(s, "tag")
	return TagID(u), err
}

// ParseCustodyEntryID validates external input into a CustodyEntryID.
func ParseCustodyEntryID(s string) (CustodyEntryID, error) {
	u, err := parseUUID(s, "custody entry")
	return CustodyEntryID(u), err
}
