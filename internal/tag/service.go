package tag

import (
	"context"
	"errors"

	"custodia/internal/audit"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
	"custodia/pkg/sentinel"
)

// Service is the tag workflow: audited creation and listing. Tags are
// readable by any authenticated principal.
type Service struct {
	store    Store
	recorder *audit.Recorder
	runner   tx.Runner
}

// NewService wires the tag service.
func NewService(store Store, recorder *audit.Recorder, runner tx.Runner) *Service {
	return &Service{store: store, recorder: recorder, runner: runner}
}

// Create adds a tag to the vocabulary. Names are unique; a duplicate
// surfaces as Conflict.
func (s *Service) Create(ctx context.Context, p domain.Principal, name, color string) (Tag, error) {
	if name == "" {
		return Tag{}, dErrors.New(dErrors.CodeValidation, "name is required")
	}

	t := Tag{
		ID:        domain.NewTagID(),
		Name:      name,
		Color:     color,
		Creator:   p.ID,
		CreatedAt: requestcontext.Now(ctx).UTC(),
	}
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Insert(ctx, t); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Newf(dErrors.CodeConflict, "tag %q already exists", name)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "insert tag")
		}
		_, err := s.recorder.Record(ctx, p, domain.AuditActionCreateTag, domain.ResourceTag, t.ID.String(), map[string]string{
			"name": t.Name,
		})
		return err
	})
	if err != nil {
		return Tag{}, err
	}
	return t, nil
}

// Get returns one tag.
func (s *Service) Get(ctx context.Context, id domain.TagID) (Tag, error) {
	if id.IsNil() {
		return Tag{}, dErrors.New(dErrors.CodeValidation, "tag id is required")
	}
	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Tag{}, dErrors.New(dErrors.CodeNotFound, "tag not found")
		}
		return Tag{}, dErrors.Wrap(err, dErrors.CodeInternal, "find tag")
	}
	return t, nil
}

// List returns the whole vocabulary, ordered by name.
func (s *Service) List(ctx context.Context) ([]Tag, error) {
	tags, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list tags")
	}
	return tags, nil
}
