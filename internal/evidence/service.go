package evidence

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"custodia/internal/audit"
	"custodia/internal/custody"
	"custodia/internal/policy"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
	"custodia/pkg/sentinel"
)

// Service is the evidence workflow. Adding an item writes the evidence row,
// its opening custody entry, and the audit record as one unit of work.
type Service struct {
	store      Store
	custody    custody.Store
	authorizer policy.Authorizer
	recorder   *audit.Recorder
	runner     tx.Runner
	tracer     trace.Tracer
}

// NewService wires the evidence service.
func NewService(store Store, custodyStore custody.Store, authorizer policy.Authorizer, recorder *audit.Recorder, runner tx.Runner) *Service {
	return &Service{
		store:      store,
		custody:    custodyStore,
		authorizer: authorizer,
		recorder:   recorder,
		runner:     runner,
		tracer:     otel.Tracer("custodia/evidence"),
	}
}

// Add books an item into its case. The evidence row, the Created custody
// entry, and the AddEvidence audit entry commit or fail together.
func (s *Service) Add(ctx context.Context, p domain.Principal, in AddInput) (Item, error) {
	ctx, span := s.tracer.Start(ctx, "evidence.Add", trace.WithAttributes(
		attribute.String("case.id", in.CaseID.String()),
	))
	defer span.End()

	if in.CaseID.IsNil() {
		return Item{}, dErrors.New(dErrors.CodeValidation, "case id is required")
	}
	if in.Name == "" {
		return Item{}, dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if in.ContentHash == "" {
		return Item{}, dErrors.New(dErrors.CodeValidation, "content hash is required")
	}
	if in.Location == "" {
		return Item{}, dErrors.New(dErrors.CodeValidation, "intake location is required")
	}

	now := requestcontext.Now(ctx).UTC()
	item := Item{
		ID:          domain.NewEvidenceID(),
		CaseID:      in.CaseID,
		Uploader:    p.ID,
		Name:        in.Name,
		Description: in.Description,
		ContentHash: in.ContentHash,
		FileRef:     in.FileRef,
		Status:      domain.EvidenceStatusPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		// Adding evidence is a mutation of the case, so it takes the case
		// update rule, not the custody-extended evidence rule.
		if err := s.authorizer.Authorize(ctx, p, policy.ActionUpdate, policy.CaseRef(in.CaseID)); err != nil {
			return err
		}
		if err := s.store.Insert(ctx, item); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "case not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "insert evidence")
		}

		uploader := p.ID
		_, err := s.custody.AppendChained(ctx, item.ID, func(prev *custody.Entry) (custody.Entry, error) {
			return custody.NewChainedEntry(item.ID, domain.CustodyActionCreated, nil, &uploader, in.Location, "booked into evidence", now, prev), nil
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "append opening custody entry")
		}

		_, err = s.recorder.Record(ctx, p, domain.AuditActionAddEvidence, domain.ResourceEvidence, item.ID.String(), map[string]string{
			"case_id":      item.CaseID.String(),
			"name":         item.Name,
			"content_hash": item.ContentHash,
		})
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// Get returns one item, gated by the custody-extended evidence read rule.
func (s *Service) Get(ctx context.Context, p domain.Principal, id domain.EvidenceID) (Item, error) {
	if id.IsNil() {
		return Item{}, dErrors.New(dErrors.CodeValidation, "evidence id is required")
	}
	if err := s.authorizer.Authorize(ctx, p, policy.ActionView, policy.EvidenceRef(id)); err != nil {
		return Item{}, err
	}
	item, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Item{}, dErrors.New(dErrors.CodeNotFound, "evidence not found")
		}
		return Item{}, dErrors.Wrap(err, dErrors.CodeInternal, "find evidence")
	}
	return item, nil
}

// ListForCase returns the case's items, gated by the case read rule. A
// custodian of one item sees that item through Get, not through the case
// listing.
func (s *Service) ListForCase(ctx context.Context, p domain.Principal, caseID domain.CaseID) ([]Item, error) {
	if caseID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "case id is required")
	}
	if err := s.authorizer.Authorize(ctx, p, policy.ActionView, policy.CaseRef(caseID)); err != nil {
		return nil, err
	}
	items, err := s.store.ListForCase(ctx, caseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list evidence")
	}
	return items, nil
}

// UpdateStatus applies an optimistically-locked status change. Transitions
// are free-form; the audit trail, not a state machine, is the record of what
// happened to the item.
func (s *Service) UpdateStatus(ctx context.Context, p domain.Principal, id domain.EvidenceID, status domain.EvidenceStatus, version int64) (Item, error) {
	ctx, span := s.tracer.Start(ctx, "evidence.UpdateStatus", trace.WithAttributes(
		attribute.String("evidence.id", id.String()),
		attribute.String("evidence.status", string(status)),
	))
	defer span.End()

	if id.IsNil() {
		return Item{}, dErrors.New(dErrors.CodeValidation, "evidence id is required")
	}
	if !status.IsValid() {
		return Item{}, dErrors.Newf(dErrors.CodeValidation, "unknown status: %s", status)
	}

	var updated Item
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authorizer.Authorize(ctx, p, policy.ActionUpdate, policy.EvidenceRef(id)); err != nil {
			return err
		}
		var err error
		updated, err = s.store.UpdateStatus(ctx, id, status, version)
		if err != nil {
			switch {
			case errors.Is(err, sentinel.ErrVersionMismatch):
				return dErrors.Newf(dErrors.CodeConflict,
					"evidence was modified concurrently: expected version %d", version)
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "evidence not found")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "update evidence status")
			}
		}
		_, err = s.recorder.Record(ctx, p, domain.AuditActionUpdateEvidence, domain.ResourceEvidence, id.String(), map[string]string{
			"status": string(status),
		})
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return updated, nil
}

// Tag associates a tag with an item, gated by evidence access and audited.
func (s *Service) Tag(ctx context.Context, p domain.Principal, id domain.EvidenceID, tagID domain.TagID) error {
	if id.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "evidence id is required")
	}
	if tagID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "tag id is required")
	}
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authorizer.Authorize(ctx, p, policy.ActionUpdate, policy.EvidenceRef(id)); err != nil {
			return err
		}
		if err := s.store.AttachTag(ctx, id, tagID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "evidence not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "attach tag")
		}
		_, err := s.recorder.Record(ctx, p, domain.AuditActionTagEvidence, domain.ResourceEvidence, id.String(), map[string]string{
			"tag_id": tagID.String(),
		})
		return err
	})
}

// Untag removes a tag association, gated by evidence access and audited.
func (s *Service) Untag(ctx context.Context, p domain.Principal, id domain.EvidenceID, tagID domain.TagID) error {
	if id.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "evidence id is required")
	}
	if tagID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "tag id is required")
	}
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authorizer.Authorize(ctx, p, policy.ActionUpdate, policy.EvidenceRef(id)); err != nil {
			return err
		}
		if err := s.store.DetachTag(ctx, id, tagID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "tag association not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "detach tag")
		}
		_, err := s.recorder.Record(ctx, p, domain.AuditActionUntagEvidence, domain.ResourceEvidence, id.String(), map[string]string{
			"tag_id": tagID.String(),
		})
		return err
	})
}

// TagsFor returns the tag ids on an item, gated by evidence access.
func (s *Service) TagsFor(ctx context.Context, p domain.Principal, id domain.EvidenceID) ([]domain.TagID, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "evidence id is required")
	}
	if err := s.authorizer.Authorize(ctx, p, policy.ActionView, policy.EvidenceRef(id)); err != nil {
		return nil, err
	}
	tagIDs, err := s.store.TagsFor(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list evidence tags")
	}
	return tagIDs, nil
}
