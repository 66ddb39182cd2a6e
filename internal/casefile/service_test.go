package casefile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"custodia/internal/audit"
	"custodia/internal/casefile"
	"custodia/internal/comment"
	"custodia/internal/custody"
	"custodia/internal/evidence"
	"custodia/internal/policy"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/platform/tx"
)

type ServiceSuite struct {
	suite.Suite

	store      *casefile.InMemoryStore
	auditStore *audit.InMemoryStore
	service    *casefile.Service

	admin    domain.Principal
	creator  domain.Principal
	outsider domain.Principal
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = casefile.NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()

	engine := policy.NewEngine(&policy.MemoryRelationSource{
		Cases:    s.store,
		Evidence: evidence.NewInMemoryStore(),
		Comments: comment.NewInMemoryStore(),
		Custody:  custody.NewInMemoryStore(),
	})
	recorder := audit.NewRecorder(s.auditStore)
	s.service = casefile.NewService(s.store, engine, recorder, tx.PassthroughRunner{})

	s.admin = domain.Principal{ID: domain.NewPrincipalID(), Role: domain.RoleAdmin}
	s.creator = domain.Principal{ID: domain.NewPrincipalID(), Role: domain.RoleInvestigator}
	s.outsider = domain.Principal{ID: domain.NewPrincipalID(), Role: domain.RoleAnalyst}
}

func (s *ServiceSuite) create(number string) casefile.Case {
	c, err := s.service.Create(context.Background(), s.creator, casefile.CreateInput{
		Number: number,
		Title:  "break-in at the docks",
	})
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) TestCreate() {
	ctx := context.Background()

	s.Run("succeeds and audits", func() {
		c, err := s.service.Create(ctx, s.creator, casefile.CreateInput{
			Number:      "2026-0142",
			Title:       "break-in at the docks",
			Description: "forced container lock",
		})
		s.Require().NoError(err)

		s.False(c.ID.IsNil())
		s.Equal(s.creator.ID, c.Creator)
		s.Equal(domain.CaseStatusOpen, c.Status)
		s.Equal(domain.CasePriorityMedium, c.Priority)
		s.EqualValues(1, c.Version)

		entries := s.auditStore.All()
		s.Require().Len(entries, 1)
		s.Equal(domain.AuditActionCreateCase, entries[0].Action)
		s.Equal(c.ID.String(), entries[0].ResourceID)
		s.Equal("2026-0142", entries[0].Details["case_number"])
	})

	s.Run("rejects missing number and title", func() {
		_, err := s.service.Create(ctx, s.creator, casefile.CreateInput{Title: "untitled"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.service.Create(ctx, s.creator, casefile.CreateInput{Number: "2026-0001"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unknown priority", func() {
		_, err := s.service.Create(ctx, s.creator, casefile.CreateInput{
			Number: "2026-0002", Title: "t", Priority: "urgent",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("duplicate number conflicts and leaves no audit entry", func() {
		before := len(s.auditStore.All())
		_, err := s.service.Create(ctx, s.creator, casefile.CreateInput{
			Number: "2026-0142", Title: "same number again",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Len(s.auditStore.All(), before)
	})
}

func (s *ServiceSuite) TestGet() {
	ctx := context.Background()
	c := s.create("2026-0200")

	s.Run("creator reads it back", func() {
		got, err := s.service.Get(ctx, s.creator, c.ID)
		s.Require().NoError(err)
		s.Equal(c.ID, got.ID)
	})

	s.Run("unrelated principal is forbidden", func() {
		_, err := s.service.Get(ctx, s.outsider, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing case is not found", func() {
		_, err := s.service.Get(ctx, s.creator, domain.NewCaseID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestList() {
	ctx := context.Background()
	s.create("2026-0201")
	s.create("2026-0202")

	s.Run("admin sees every case", func() {
		cases, err := s.service.List(ctx, s.admin)
		s.Require().NoError(err)
		s.Len(cases, 2)
	})

	s.Run("unrelated principal sees none", func() {
		cases, err := s.service.List(ctx, s.outsider)
		s.Require().NoError(err)
		s.Empty(cases)
	})

	s.Run("assignee sees the case they are assigned", func() {
		assigneeID := s.outsider.ID
		c := s.create("2026-0203")
		_, err := s.service.Update(ctx, s.creator, c.ID, casefile.UpdateInput{
			AssignedTo: &assigneeID,
			Version:    c.Version,
		})
		s.Require().NoError(err)

		cases, err := s.service.List(ctx, s.outsider)
		s.Require().NoError(err)
		s.Require().Len(cases, 1)
		s.Equal(c.ID, cases[0].ID)
	})
}

func (s *ServiceSuite) TestUpdate() {
	ctx := context.Background()

	s.Run("partial update bumps version and audits the diff", func() {
		c := s.create("2026-0300")
		title := "break-in at the docks, expanded"
		priority := domain.CasePriorityHigh

		updated, err := s.service.Update(ctx, s.creator, c.ID, casefile.UpdateInput{
			Title:    &title,
			Priority: &priority,
			Version:  c.Version,
		})
		s.Require().NoError(err)
		s.Equal(title, updated.Title)
		s.Equal(priority, updated.Priority)
		s.Equal(c.Version+1, updated.Version)
		s.Equal(c.Description, updated.Description)

		entries := s.auditStore.All()
		last := entries[len(entries)-1]
		s.Equal(domain.AuditActionUpdateCase, last.Action)
		s.Equal(title, last.Details["title"])
		s.Equal(string(priority), last.Details["priority"])
		s.NotContains(last.Details, "description")
	})

	s.Run("stale version conflicts", func() {
		c := s.create("2026-0301")
		title := "first writer"
		_, err := s.service.Update(ctx, s.creator, c.ID, casefile.UpdateInput{
			Title: &title, Version: c.Version,
		})
		s.Require().NoError(err)

		title = "second writer, stale read"
		_, err = s.service.Update(ctx, s.creator, c.ID, casefile.UpdateInput{
			Title: &title, Version: c.Version,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("archiving audits as an archive", func() {
		c := s.create("2026-0302")
		archived := domain.CaseStatusArchived
		_, err := s.service.Update(ctx, s.creator, c.ID, casefile.UpdateInput{
			Status: &archived, Version: c.Version,
		})
		s.Require().NoError(err)

		entries := s.auditStore.All()
		s.Equal(domain.AuditActionArchiveCase, entries[len(entries)-1].Action)
	})

	s.Run("unrelated principal is forbidden", func() {
		c := s.create("2026-0303")
		title := "should not land"
		_, err := s.service.Update(ctx, s.outsider, c.ID, casefile.UpdateInput{
			Title: &title, Version: c.Version,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown status is rejected before any write", func() {
		c := s.create("2026-0304")
		bad := domain.CaseStatus("reopened")
		_, err := s.service.Update(ctx, s.creator, c.ID, casefile.UpdateInput{
			Status: &bad, Version: c.Version,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing case is not found", func() {
		title := "nowhere"
		_, err := s.service.Update(ctx, s.creator, domain.NewCaseID(), casefile.UpdateInput{
			Title: &title, Version: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// failingAuditStore refuses appends so the suite can check that a mutation
// does not outlive its audit entry.
type failingAuditStore struct {
	audit.Store
}

func (failingAuditStore) Append(context.Context, audit.Entry) error {
	return context.DeadlineExceeded
}

func (s *ServiceSuite) TestAuditFailureFailsTheMutation() {
	recorder := audit.NewRecorder(failingAuditStore{})
	engine := policy.NewEngine(&policy.MemoryRelationSource{
		Cases:    s.store,
		Evidence: evidence.NewInMemoryStore(),
		Comments: comment.NewInMemoryStore(),
		Custody:  custody.NewInMemoryStore(),
	})
	broken := casefile.NewService(s.store, engine, recorder, tx.PassthroughRunner{})

	_, err := broken.Create(context.Background(), s.creator, casefile.CreateInput{
		Number: "2026-0400", Title: "doomed",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
