package casefile

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"custodia/internal/audit"
	"custodia/internal/policy"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
	"custodia/pkg/sentinel"
)

// Service is the case workflow: authenticated creation, policy-gated reads,
// and optimistically-locked updates, each mutation committing with its audit
// entry.
type Service struct {
	store      Store
	authorizer policy.Authorizer
	recorder   *audit.Recorder
	runner     tx.Runner
	tracer     trace.Tracer
}

// NewService wires the case service.
func NewService(store Store, authorizer policy.Authorizer, recorder *audit.Recorder, runner tx.Runner) *Service {
	return &Service{
		store:      store,
		authorizer: authorizer,
		recorder:   recorder,
		runner:     runner,
		tracer:     otel.Tracer("custodia/casefile"),
	}
}

// Create opens a new case with the calling principal as creator. The case row
// and its audit entry commit as one unit.
func (s *Service) Create(ctx context.Context, p domain.Principal, in CreateInput) (Case, error) {
	ctx, span := s.tracer.Start(ctx, "casefile.Create")
	defer span.End()

	if in.Number == "" {
		return Case{}, dErrors.New(dErrors.CodeValidation, "case number is required")
	}
	if in.Title == "" {
		return Case{}, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if in.Priority == "" {
		in.Priority = domain.CasePriorityMedium
	}
	if !in.Priority.IsValid() {
		return Case{}, dErrors.Newf(dErrors.CodeValidation, "unknown priority: %s", in.Priority)
	}

	now := requestcontext.Now(ctx).UTC()
	c := Case{
		ID:               domain.NewCaseID(),
		Number:           in.Number,
		Title:            in.Title,
		Description:      in.Description,
		Creator:          p.ID,
		LeadInvestigator: in.LeadInvestigator,
		AssignedTo:       in.AssignedTo,
		Status:           domain.CaseStatusOpen,
		Priority:         in.Priority,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	span.SetAttributes(attribute.String("case.id", c.ID.String()))

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Insert(ctx, c); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Newf(dErrors.CodeConflict, "case number %q is taken", c.Number)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "insert case")
		}
		_, err := s.recorder.Record(ctx, p, domain.AuditActionCreateCase, domain.ResourceCase, c.ID.String(), map[string]string{
			"case_number": c.Number,
			"title":       c.Title,
			"priority":    string(c.Priority),
		})
		return err
	})
	if err != nil {
		return Case{}, err
	}
	return c, nil
}

// Get returns one case, gated by the case read rule.
func (s *Service) Get(ctx context.Context, p domain.Principal, id domain.CaseID) (Case, error) {
	if id.IsNil() {
		return Case{}, dErrors.New(dErrors.CodeValidation, "case id is required")
	}
	if err := s.authorizer.Authorize(ctx, p, policy.ActionView, policy.CaseRef(id)); err != nil {
		return Case{}, err
	}
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Case{}, dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		return Case{}, dErrors.Wrap(err, dErrors.CodeInternal, "find case")
	}
	return c, nil
}

// List returns the cases the principal may see: every case for an admin, the
// related ones for everyone else. Scoping at the query keeps the list rule
// identical to the per-case rule without an evaluation per row.
func (s *Service) List(ctx context.Context, p domain.Principal) ([]Case, error) {
	var (
		cases []Case
		err   error
	)
	if p.IsAdmin() {
		cases, err = s.store.ListAll(ctx)
	} else {
		cases, err = s.store.ListForPrincipal(ctx, p.ID)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list cases")
	}
	return cases, nil
}

// Update applies a partial, optimistically-locked update. A status change to
// archived is audited as an archive; every other change as a plain update.
// A version that no longer matches surfaces as Conflict so the caller can
// re-read and retry.
func (s *Service) Update(ctx context.Context, p domain.Principal, id domain.CaseID, in UpdateInput) (Case, error) {
	ctx, span := s.tracer.Start(ctx, "casefile.Update", trace.WithAttributes(
		attribute.String("case.id", id.String()),
	))
	defer span.End()

	if id.IsNil() {
		return Case{}, dErrors.New(dErrors.CodeValidation, "case id is required")
	}
	if in.Status != nil && !in.Status.IsValid() {
		return Case{}, dErrors.Newf(dErrors.CodeValidation, "unknown status: %s", *in.Status)
	}
	if in.Priority != nil && !in.Priority.IsValid() {
		return Case{}, dErrors.Newf(dErrors.CodeValidation, "unknown priority: %s", *in.Priority)
	}

	var updated Case
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authorizer.Authorize(ctx, p, policy.ActionUpdate, policy.CaseRef(id)); err != nil {
			return err
		}
		current, err := s.store.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "case not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "find case")
		}

		next := current
		next.Version = in.Version
		applyUpdate(&next, in)
		next.UpdatedAt = requestcontext.Now(ctx).UTC()

		updated, err = s.store.Update(ctx, next)
		if err != nil {
			switch {
			case errors.Is(err, sentinel.ErrVersionMismatch):
				return dErrors.Newf(dErrors.CodeConflict,
					"case was modified concurrently: expected version %d", in.Version)
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "case not found")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "update case")
			}
		}

		action := domain.AuditActionUpdateCase
		if in.Status != nil && *in.Status == domain.CaseStatusArchived && current.Status != domain.CaseStatusArchived {
			action = domain.AuditActionArchiveCase
		}
		_, err = s.recorder.Record(ctx, p, action, domain.ResourceCase, id.String(), updateDetails(current, updated))
		return err
	})
	if err != nil {
		return Case{}, err
	}
	return updated, nil
}

func applyUpdate(c *Case, in UpdateInput) {
	if in.Title != nil {
		c.Title = *in.Title
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Status != nil {
		c.Status = *in.Status
	}
	if in.Priority != nil {
		c.Priority = *in.Priority
	}
	if in.LeadInvestigator != nil {
		c.LeadInvestigator = in.LeadInvestigator
	}
	if in.AssignedTo != nil {
		c.AssignedTo = in.AssignedTo
	}
}

// updateDetails records the post-update field values that differ from the
// pre-update case, so the audit trail shows what changed.
func updateDetails(before, after Case) map[string]string {
	details := make(map[string]string)
	if before.Title != after.Title {
		details["title"] = after.Title
	}
	if before.Description != after.Description {
		details["description"] = after.Description
	}
	if before.Status != after.Status {
		details["status"] = string(after.Status)
	}
	if before.Priority != after.Priority {
		details["priority"] = string(after.Priority)
	}
	if !principalEq(before.LeadInvestigator, after.LeadInvestigator) {
		details["lead_investigator"] = principalString(after.LeadInvestigator)
	}
	if !principalEq(before.AssignedTo, after.AssignedTo) {
		details["assigned_to"] = principalString(after.AssignedTo)
	}
	return details
}

func principalEq(a, b *domain.PrincipalID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func principalString(p *domain.PrincipalID) string {
	if p == nil {
		return ""
	}
	return p.String()
}
