package comment

import (
	"context"
	"errors"

	"custodia/internal/audit"
	"custodia/internal/policy"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
	"custodia/pkg/sentinel"
)

// bodyDetailCap bounds the comment body copied into the audit detail
// payload. The full body lives only on the comment row.
const bodyDetailCap = 120

// Service is the comment workflow: parent-gated adds and reads.
type Service struct {
	store      Store
	authorizer policy.Authorizer
	recorder   *audit.Recorder
	runner     tx.Runner
}

// NewService wires the comment service.
func NewService(store Store, authorizer policy.Authorizer, recorder *audit.Recorder, runner tx.Runner) *Service {
	return &Service{
		store:      store,
		authorizer: authorizer,
		recorder:   recorder,
		runner:     runner,
	}
}

// Add attaches a comment to its parent. The parent must be exactly one of a
// case or an evidence item; access follows the parent's own rule.
func (s *Service) Add(ctx context.Context, p domain.Principal, in AddInput) (Comment, error) {
	if in.Body == "" {
		return Comment{}, dErrors.New(dErrors.CodeValidation, "body is required")
	}
	parentRef, err := parentRef(in.CaseID, in.EvidenceID)
	if err != nil {
		return Comment{}, err
	}

	c := Comment{
		ID:         domain.NewCommentID(),
		CaseID:     in.CaseID,
		EvidenceID: in.EvidenceID,
		Author:     p.ID,
		Body:       in.Body,
		CreatedAt:  requestcontext.Now(ctx).UTC(),
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authorizer.Authorize(ctx, p, policy.ActionUpdate, parentRef); err != nil {
			return err
		}
		if err := s.store.Insert(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "insert comment")
		}
		_, err := s.recorder.Record(ctx, p, domain.AuditActionAddComment, domain.ResourceComment, c.ID.String(), map[string]string{
			"parent_type": string(parentRef.Type),
			"parent_id":   parentRef.ID(),
			"body":        audit.Truncate(c.Body, bodyDetailCap),
		})
		return err
	})
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

// Get returns one comment, gated by the parent's rule.
func (s *Service) Get(ctx context.Context, p domain.Principal, id domain.CommentID) (Comment, error) {
	if id.IsNil() {
		return Comment{}, dErrors.New(dErrors.CodeValidation, "comment id is required")
	}
	if err := s.authorizer.Authorize(ctx, p, policy.ActionView, policy.CommentRef(id)); err != nil {
		return Comment{}, err
	}
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Comment{}, dErrors.New(dErrors.CodeNotFound, "comment not found")
		}
		return Comment{}, dErrors.Wrap(err, dErrors.CodeInternal, "find comment")
	}
	return c, nil
}

// ListForCase returns a case's comments, gated by the case read rule.
func (s *Service) ListForCase(ctx context.Context, p domain.Principal, caseID domain.CaseID) ([]Comment, error) {
	if caseID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "case id is required")
	}
	if err := s.authorizer.Authorize(ctx, p, policy.ActionView, policy.CaseRef(caseID)); err != nil {
		return nil, err
	}
	comments, err := s.store.ListForCase(ctx, caseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list comments")
	}
	return comments, nil
}

// ListForEvidence returns an item's comments, gated by the custody-extended
// evidence read rule.
func (s *Service) ListForEvidence(ctx context.Context, p domain.Principal, evidenceID domain.EvidenceID) ([]Comment, error) {
	if evidenceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "evidence id is required")
	}
	if err := s.authorizer.Authorize(ctx, p, policy.ActionView, policy.EvidenceRef(evidenceID)); err != nil {
		return nil, err
	}
	comments, err := s.store.ListForEvidence(ctx, evidenceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list comments")
	}
	return comments, nil
}

// parentRef enforces the exclusive-or parent rule and returns the policy ref
// for the side that is set.
func parentRef(caseID *domain.CaseID, evidenceID *domain.EvidenceID) (policy.ResourceRef, error) {
	switch {
	case caseID != nil && evidenceID != nil:
		return policy.ResourceRef{}, dErrors.New(dErrors.CodeValidation, "a comment belongs to a case or an evidence item, not both")
	case caseID != nil:
		if caseID.IsNil() {
			return policy.ResourceRef{}, dErrors.New(dErrors.CodeValidation, "case id is required")
		}
		return policy.CaseRef(*caseID), nil
	case evidenceID != nil:
		if evidenceID.IsNil() {
			return policy.ResourceRef{}, dErrors.New(dErrors.CodeValidation, "evidence id is required")
		}
		return policy.EvidenceRef(*evidenceID), nil
	default:
		return policy.ResourceRef{}, dErrors.New(dErrors.CodeValidation, "a parent case or evidence item is required")
	}
}
