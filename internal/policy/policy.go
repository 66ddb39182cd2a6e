// Package policy is the single source of truth for who may see or change a
// case, an evidence item, a comment, or a custody record. Every other
// component consults it before touching data; no other copy of these rules
// exists anywhere in the codebase.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"custodia/internal/platform/metrics"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/sentinel"
)

// Action is what the principal wants to do with the resource. The rule sets
// for view and update are currently identical for every resource type, but
// the parameter keeps call sites explicit and lets the sets diverge later
// without touching callers.
type Action string

const (
	ActionView   Action = "view"
	ActionUpdate Action = "update"
)

// ResourceRef identifies the resource an evaluation is about. Construct via
// the typed helpers; the zero value is invalid.
type ResourceRef struct {
	Type domain.ResourceType
	id   uuid.UUID
	// owner is set only for audit-entry refs, whose rule depends on the
	// entry's own principal rather than on entity relations.
	owner domain.PrincipalID
}

// CaseRef references a case.
func CaseRef(id domain.CaseID) ResourceRef {
	return ResourceRef{Type: domain.ResourceCase, id: uuid.UUID(id)}
}

// EvidenceRef references an evidence item.
func EvidenceRef(id domain.EvidenceID) ResourceRef {
	return ResourceRef{Type: domain.ResourceEvidence, id: uuid.UUID(id)}
}

// CommentRef references a comment.
func CommentRef(id domain.CommentID) ResourceRef {
	return ResourceRef{Type: domain.ResourceComment, id: uuid.UUID(id)}
}

// TagRef references a tag. Tags carry no access semantics of their own; the
// ref exists so tag reads go through the same Authorize call site as every
// other resource.
func TagRef(id domain.TagID) ResourceRef {
	return ResourceRef{Type: domain.ResourceTag, id: uuid.UUID(id)}
}

// CustodyEntryRef references the custody ledger of an evidence item. Custody
// entries inherit the evidence read rule, so the ref carries the evidence id.
func CustodyEntryRef(evidenceID domain.EvidenceID) ResourceRef {
	return ResourceRef{Type: domain.ResourceCustodyEntry, id: uuid.UUID(evidenceID)}
}

// AuditEntryRef references a single audit entry. Audit entries are visible
// to their own principal or to an admin only.
func AuditEntryRef(id domain.AuditEntryID, owner domain.PrincipalID) ResourceRef {
	return ResourceRef{Type: domain.ResourceAuditEntry, id: uuid.UUID(id), owner: owner}
}

// ID returns the referenced resource id as a string.
func (r ResourceRef) ID() string { return r.id.String() }

// Decision is the outcome of one evaluation. Reason is set only on deny and
// is safe for logs; it never leaks relation details to callers.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the affirmative decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny carries the rule that failed.
func Deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// CaseRelations is the relation set the case rule evaluates.
type CaseRelations struct {
	Creator          domain.PrincipalID
	LeadInvestigator *domain.PrincipalID
	AssignedTo       *domain.PrincipalID
	Version          int64
}

// EvidenceRelations is the relation set the evidence rule evaluates.
// Custodians holds every principal that ever received custody of the item;
// the ledger is read fresh on each evaluation, never cached.
type EvidenceRelations struct {
	CaseID     domain.CaseID
	Uploader   domain.PrincipalID
	Custodians []domain.PrincipalID
	Version    int64
}

// CommentRelations is the parent pointer a comment inherits visibility from.
// Exactly one of CaseID or EvidenceID is set.
type CommentRelations struct {
	CaseID     *domain.CaseID
	EvidenceID *domain.EvidenceID
}

// Snapshot serves relation reads for one evaluation. All reads within one
// snapshot observe a single consistent state of the underlying relations: a
// grant added mid-evaluation must not be half-applied.
type Snapshot interface {
	Case(ctx context.Context, id domain.CaseID) (CaseRelations, error)
	Evidence(ctx context.Context, id domain.EvidenceID) (EvidenceRelations, error)
	Comment(ctx context.Context, id domain.CommentID) (CommentRelations, error)
}

// RelationSource hands out snapshots. The release func must be called when
// the evaluation is done.
type RelationSource interface {
	Snapshot(ctx context.Context) (Snapshot, func(), error)
}

// Authorizer is the contract services depend on; implemented by Engine and
// CachedEngine.
type Authorizer interface {
	Evaluate(ctx context.Context, p domain.Principal, action Action, ref ResourceRef) (Decision, error)
	Authorize(ctx context.Context, p domain.Principal, action Action, ref ResourceRef) error
}

// Engine evaluates access rules against a consistent relation snapshot.
type Engine struct {
	relations  RelationSource
	hideDenied bool
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithExistenceHiding makes Authorize surface denials as NotFound so callers
// cannot probe for the existence of resources they may not see.
func WithExistenceHiding(enabled bool) Option {
	return func(e *Engine) { e.hideDenied = enabled }
}

// WithMetrics wires decision counters and latency observation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine builds the policy engine over the given relation source.
func NewEngine(relations RelationSource, opts ...Option) *Engine {
	e := &Engine{
		relations: relations,
		tracer:    otel.Tracer("custodia/policy"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns Allow or Deny(reason) for one principal, action, and
// resource. Admins short-circuit to Allow without reading relations.
// Returns sentinel.ErrNotFound (wrapped) when the resource does not exist.
func (e *Engine) Evaluate(ctx context.Context, p domain.Principal, action Action, ref ResourceRef) (Decision, error) {
	ctx, span := e.tracer.Start(ctx, "policy.Evaluate", trace.WithAttributes(
		attribute.String("resource.type", string(ref.Type)),
		attribute.String("policy.action", string(action)),
	))
	defer span.End()

	start := time.Now()
	dec, err := e.evaluate(ctx, p, action, ref)
	e.observe(ref.Type, dec, err, time.Since(start))
	if err != nil {
		return Decision{}, err
	}
	span.SetAttributes(attribute.Bool("policy.allowed", dec.Allowed))
	return dec, nil
}

func (e *Engine) evaluate(ctx context.Context, p domain.Principal, _ Action, ref ResourceRef) (Decision, error) {
	if !p.Role.IsValid() {
		return Decision{}, dErrors.New(dErrors.CodeUnauthenticated, "principal has no valid role")
	}
	if p.IsAdmin() {
		return Allow(), nil
	}

	// Audit entries need no relation read: the rule is ownership only.
	if ref.Type == domain.ResourceAuditEntry {
		if p.ID == ref.owner {
			return Allow(), nil
		}
		return Deny("audit entries are visible to their own principal or an admin"), nil
	}

	snap, release, err := e.relations.Snapshot(ctx)
	if err != nil {
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "open relation snapshot")
	}
	defer release()

	switch ref.Type {
	case domain.ResourceCase:
		return e.evaluateCase(ctx, snap, p, domain.CaseID(ref.id))
	case domain.ResourceEvidence, domain.ResourceCustodyEntry:
		return e.evaluateEvidence(ctx, snap, p, domain.EvidenceID(ref.id))
	case domain.ResourceComment:
		return e.evaluateComment(ctx, snap, p, domain.CommentID(ref.id))
	case domain.ResourceTag:
		// Tags carry no access semantics of their own.
		return Allow(), nil
	default:
		return Decision{}, dErrors.Newf(dErrors.CodeValidation, "no policy rule for resource type %q", ref.Type)
	}
}

// evaluateCase: allow iff the principal is the creator, the lead
// investigator, or the assignee. Admin was short-circuited above.
func (e *Engine) evaluateCase(ctx context.Context, snap Snapshot, p domain.Principal, id domain.CaseID) (Decision, error) {
	rel, err := snap.Case(ctx, id)
	if err != nil {
		return Decision{}, err
	}
	if p.ID == rel.Creator {
		return Allow(), nil
	}
	if rel.LeadInvestigator != nil && p.ID == *rel.LeadInvestigator {
		return Allow(), nil
	}
	if rel.AssignedTo != nil && p.ID == *rel.AssignedTo {
		return Allow(), nil
	}
	return Deny("principal has no relation to the case"), nil
}

// evaluateEvidence: allow iff the principal may view the parent case, is the
// uploader, or appears as toPrincipal anywhere in the item's custody chain.
// Custody extends visibility beyond case membership to this one item.
func (e *Engine) evaluateEvidence(ctx context.Context, snap Snapshot, p domain.Principal, id domain.EvidenceID) (Decision, error) {
	rel, err := snap.Evidence(ctx, id)
	if err != nil {
		return Decision{}, err
	}
	if p.ID == rel.Uploader {
		return Allow(), nil
	}
	for _, custodian := range rel.Custodians {
		if p.ID == custodian {
			return Allow(), nil
		}
	}
	caseDec, err := e.evaluateCase(ctx, snap, p, rel.CaseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Every evidence row must reference an existing case.
			return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal,
				fmt.Sprintf("evidence %s references a missing case", id))
		}
		return Decision{}, err
	}
	if caseDec.Allowed {
		return Allow(), nil
	}
	return Deny("principal is neither a case member, the uploader, nor a custodian"), nil
}

// evaluateComment: visibility is inherited from the parent, one hop, using
// the parent's own rule.
func (e *Engine) evaluateComment(ctx context.Context, snap Snapshot, p domain.Principal, id domain.CommentID) (Decision, error) {
	rel, err := snap.Comment(ctx, id)
	if err != nil {
		return Decision{}, err
	}
	switch {
	case rel.CaseID != nil:
		return e.evaluateCase(ctx, snap, p, *rel.CaseID)
	case rel.EvidenceID != nil:
		return e.evaluateEvidence(ctx, snap, p, *rel.EvidenceID)
	default:
		return Decision{}, dErrors.Newf(dErrors.CodeInternal, "comment %s has no parent", id)
	}
}

// Authorize translates an evaluation into a coded error: nil on allow,
// CodeForbidden on deny (or CodeNotFound when existence hiding is enabled),
// CodeNotFound when the resource is absent. This is the one place the
// Forbidden/NotFound distinction is decided.
func (e *Engine) Authorize(ctx context.Context, p domain.Principal, action Action, ref ResourceRef) error {
	dec, err := e.Evaluate(ctx, p, action, ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return fmtNotFound(ref)
		}
		return err
	}
	if dec.Allowed {
		return nil
	}
	if e.hideDenied {
		return fmtNotFound(ref)
	}
	return fmtForbidden(ref)
}

func fmtNotFound(ref ResourceRef) error {
	return dErrors.Newf(dErrors.CodeNotFound, "%s not found", ref.Type)
}

func fmtForbidden(ref ResourceRef) error {
	return dErrors.Newf(dErrors.CodeForbidden, "access to %s denied", ref.Type)
}

func (e *Engine) observe(rt domain.ResourceType, dec Decision, err error, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	outcome := "error"
	if err == nil {
		if dec.Allowed {
			outcome = "allow"
		} else {
			outcome = "deny"
		}
	}
	e.metrics.RecordPolicyDecision(string(rt), outcome, elapsed.Seconds())
}
