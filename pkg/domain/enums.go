package domain

import dErrors "custodia/pkg/domainerrors"

// CaseStatus tracks the lifecycle of a case. Cases are never deleted;
// retirement happens through StatusArchived.
type CaseStatus string

const (
	CaseStatusOpen     CaseStatus = "open"
	CaseStatusActive   CaseStatus = "active"
	CaseStatusClosed   CaseStatus = "closed"
	CaseStatusArchived CaseStatus = "archived"
)

var validCaseStatuses = map[CaseStatus]bool{
	CaseStatusOpen:     true,
	CaseStatusActive:   true,
	CaseStatusClosed:   true,
	CaseStatusArchived: true,
}

func (s CaseStatus) IsValid() bool { return validCaseStatuses[s] }

// ParseCaseStatus constructs a CaseStatus from external input.
func ParseCaseStatus(s string) (CaseStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "case status cannot be empty")
	}
	cs := CaseStatus(s)
	if !cs.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown case status: %s", s)
	}
	return cs, nil
}

// CasePriority orders investigative urgency.
type CasePriority string

const (
	CasePriorityLow      CasePriority = "low"
	CasePriorityMedium   CasePriority = "medium"
	CasePriorityHigh     CasePriority = "high"
	CasePriorityCritical CasePriority = "critical"
)

var validCasePriorities = map[CasePriority]bool{
	CasePriorityLow:      true,
	CasePriorityMedium:   true,
	CasePriorityHigh:     true,
	CasePriorityCritical: true,
}

func (p CasePriority) IsValid() bool { return validCasePriorities[p] }

// ParseCasePriority constructs a CasePriority from external input.
func ParseCasePriority(s string) (CasePriority, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "case priority cannot be empty")
	}
	cp := CasePriority(s)
	if !cp.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown case priority: %s", s)
	}
	return cp, nil
}

// EvidenceStatus tracks the handling state of an evidence item. Transitions
// are free-form; there is deliberately no enforced state machine.
type EvidenceStatus string

const (
	EvidenceStatusPending  EvidenceStatus = "pending"
	EvidenceStatusVerified EvidenceStatus = "verified"
	EvidenceStatusArchived EvidenceStatus = "archived"
	EvidenceStatusDisposed EvidenceStatus = "disposed"
)

var validEvidenceStatuses = map[EvidenceStatus]bool{
	EvidenceStatusPending:  true,
	EvidenceStatusVerified: true,
	EvidenceStatusArchived: true,
	EvidenceStatusDisposed: true,
}

func (s EvidenceStatus) IsValid() bool { return validEvidenceStatuses[s] }

// ParseEvidenceStatus constructs an EvidenceStatus from external input.
func ParseEvidenceStatus(s string) (EvidenceStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "evidence status cannot be empty")
	}
	es := EvidenceStatus(s)
	if !es.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown evidence status: %s", s)
	}
	return es, nil
}

// CustodyAction classifies a chain-of-custody event. A closed set so the
// ledger can never record a misspelled action.
type CustodyAction string

const (
	CustodyActionCreated     CustodyAction = "created"
	CustodyActionTransferred CustodyAction = "transferred"
	CustodyActionAccessed    CustodyAction = "accessed"
	CustodyActionDownloaded  CustodyAction = "downloaded"
	CustodyActionModified    CustodyAction = "modified"
	CustodyActionArchived    CustodyAction = "archived"
)

var validCustodyActions = map[CustodyAction]bool{
	CustodyActionCreated:     true,
	CustodyActionTransferred: true,
	CustodyActionAccessed:    true,
	CustodyActionDownloaded:  true,
	CustodyActionModified:    true,
	CustodyActionArchived:    true,
}

func (a CustodyAction) IsValid() bool { return validCustodyActions[a] }

// ParseCustodyAction constructs a CustodyAction from external input.
func ParseCustodyAction(s string) (CustodyAction, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "custody action cannot be empty")
	}
	ca := CustodyAction(s)
	if !ca.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown custody action: %s", s)
	}
	return ca, nil
}

// ResourceType names the kinds of resources the policy engine and audit
// trail reference.
type ResourceType string

const (
	ResourceCase         ResourceType = "case"
	ResourceEvidence     ResourceType = "evidence"
	ResourceComment      ResourceType = "comment"
	ResourceTag          ResourceType = "tag"
	ResourceCustodyEntry ResourceType = "custody_entry"
	ResourceAuditEntry   ResourceType = "audit_entry"
	ResourcePrincipal    ResourceType = "principal"
)

var validResourceTypes = map[ResourceType]bool{
	ResourceCase:         true,
	ResourceEvidence:     true,
	ResourceComment:      true,
	ResourceTag:          true,
	ResourceCustodyEntry: true,
	ResourceAuditEntry:   true,
	ResourcePrincipal:    true,
}

func (t ResourceType) IsValid() bool { return validResourceTypes[t] }

// ParseResourceType constructs a ResourceType from external input.
func ParseResourceType(s string) (ResourceType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "resource type cannot be empty")
	}
	rt := ResourceType(s)
	if !rt.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown resource type: %s", s)
	}
	return rt, nil
}

// AuditAction names a state-changing operation. Exactly one audit entry is
// recorded per committed mutation, keyed by (resource id, action).
type AuditAction string

const (
	AuditActionCreateCase      AuditAction = "CreateCase"
	AuditActionUpdateCase      AuditAction = "UpdateCase"
	AuditActionArchiveCase     AuditAction = "ArchiveCase"
	AuditActionAddEvidence     AuditAction = "AddEvidence"
	AuditActionUpdateEvidence  AuditAction = "UpdateEvidence"
	AuditActionTransferCustody AuditAction = "TransferCustody"
	AuditActionAppendCustody   AuditAction = "AppendCustody"
	AuditActionAddComment      AuditAction = "AddComment"
	AuditActionCreateTag       AuditAction = "CreateTag"
	AuditActionTagEvidence     AuditAction = "TagEvidence"
	AuditActionUntagEvidence   AuditAction = "UntagEvidence"
	AuditActionLogin           AuditAction = "Login"
)

var validAuditActions = map[AuditAction]bool{
	AuditActionCreateCase:      true,
	AuditActionUpdateCase:      true,
	AuditActionArchiveCase:     true,
	AuditActionAddEvidence:     true,
	AuditActionUpdateEvidence:  true,
	AuditActionTransferCustody: true,
	AuditActionAppendCustody:   true,
	AuditActionAddComment:      true,
	AuditActionCreateTag:       true,
	AuditActionTagEvidence:     true,
	AuditActionUntagEvidence:   true,
	AuditActionLogin:           true,
}

func (a AuditAction) IsValid() bool { return validAuditActions[a] }

// ParseAuditAction constructs an AuditAction from external input.
func ParseAuditAction(s string) (AuditAction, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "audit action cannot be empty")
	}
	aa := AuditAction(s)
	if !aa.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown audit action: %s", s)
	}
	return aa, nil
}
