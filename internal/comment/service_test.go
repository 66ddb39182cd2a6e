package comment_test

import (
	"context"
	"strings"
	"testing"
	"time"

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

	store      *comment.InMemoryStore
	auditStore *audit.InMemoryStore
	service    *comment.Service

	investigator domain.Principal
	outsider     domain.Principal

	caseID     domain.CaseID
	evidenceID domain.EvidenceID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	ctx := context.Background()
	now := time.Now().UTC()

	s.store = comment.NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()
	cases := casefile.NewInMemoryStore()
	items := evidence.NewInMemoryStore()

	s.investigator = domain.Principal{ID: domain.NewPrincipalID(), Role: domain.RoleInvestigator}
	s.outsider = domain.Principal{ID: domain.NewPrincipalID(), Role: domain.RoleLegal}

	s.caseID = domain.NewCaseID()
	s.Require().NoError(cases.Insert(ctx, casefile.Case{
		ID:        s.caseID,
		Number:    "2026-0700",
		Title:     "pharmacy robbery",
		Creator:   s.investigator.ID,
		Status:    domain.CaseStatusOpen,
		Priority:  domain.CasePriorityMedium,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	s.evidenceID = domain.NewEvidenceID()
	s.Require().NoError(items.Insert(ctx, evidence.Item{
		ID:        s.evidenceID,
		CaseID:    s.caseID,
		Uploader:  s.investigator.ID,
		Name:      "register receipt roll",
		Status:    domain.EvidenceStatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	engine := policy.NewEngine(&policy.MemoryRelationSource{
		Cases:    cases,
		Evidence: items,
		Comments: s.store,
		Custody:  custody.NewInMemoryStore(),
	})
	recorder := audit.NewRecorder(s.auditStore)
	s.service = comment.NewService(s.store, engine, recorder, tx.PassthroughRunner{})
}

func (s *ServiceSuite) TestAdd() {
	ctx := context.Background()

	s.Run("on a case, audited with a truncated body", func() {
		body := strings.Repeat("suspect seen near the loading bay. ", 10)
		c, err := s.service.Add(ctx, s.investigator, comment.AddInput{
			CaseID: &s.caseID,
			Body:   body,
		})
		s.Require().NoError(err)
		s.Equal(body, c.Body)
		s.Require().NotNil(c.CaseID)
		s.Equal(s.caseID, *c.CaseID)
		s.Nil(c.EvidenceID)

		entries := s.auditStore.All()
		s.Require().Len(entries, 1)
		s.Equal(domain.AuditActionAddComment, entries[0].Action)
		s.Equal("case", entries[0].Details["parent_type"])
		s.Equal(s.caseID.String(), entries[0].Details["parent_id"])
		s.Len(entries[0].Details["body"], 120)
		s.True(strings.HasSuffix(entries[0].Details["body"], "..."))
	})

	s.Run("on an evidence item", func() {
		c, err := s.service.Add(ctx, s.investigator, comment.AddInput{
			EvidenceID: &s.evidenceID,
			Body:       "roll is water damaged",
		})
		s.Require().NoError(err)
		s.Nil(c.CaseID)
		s.Require().NotNil(c.EvidenceID)

		entries := s.auditStore.All()
		last := entries[len(entries)-1]
		s.Equal("evidence", last.Details["parent_type"])
		s.Equal("roll is water damaged", last.Details["body"])
	})

	s.Run("rejects both parents", func() {
		_, err := s.service.Add(ctx, s.investigator, comment.AddInput{
			CaseID:     &s.caseID,
			EvidenceID: &s.evidenceID,
			Body:       "ambiguous",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects no parent", func() {
		_, err := s.service.Add(ctx, s.investigator, comment.AddInput{Body: "orphan"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects empty body", func() {
		_, err := s.service.Add(ctx, s.investigator, comment.AddInput{CaseID: &s.caseID})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("parent access gates the add", func() {
		_, err := s.service.Add(ctx, s.outsider, comment.AddInput{
			CaseID: &s.caseID,
			Body:   "should not land",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing parent is not found", func() {
		missing := domain.NewCaseID()
		_, err := s.service.Add(ctx, s.investigator, comment.AddInput{
			CaseID: &missing,
			Body:   "nowhere",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestReads() {
	ctx := context.Background()

	caseComment, err := s.service.Add(ctx, s.investigator, comment.AddInput{
		CaseID: &s.caseID, Body: "case note",
	})
	s.Require().NoError(err)
	evidenceComment, err := s.service.Add(ctx, s.investigator, comment.AddInput{
		EvidenceID: &s.evidenceID, Body: "evidence note",
	})
	s.Require().NoError(err)

	s.Run("get follows the parent rule", func() {
		got, err := s.service.Get(ctx, s.investigator, caseComment.ID)
		s.Require().NoError(err)
		s.Equal(caseComment.ID, got.ID)

		_, err = s.service.Get(ctx, s.outsider, caseComment.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing comment is not found", func() {
		_, err := s.service.Get(ctx, s.investigator, domain.NewCommentID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("case listing", func() {
		comments, err := s.service.ListForCase(ctx, s.investigator, s.caseID)
		s.Require().NoError(err)
		s.Require().Len(comments, 1)
		s.Equal(caseComment.ID, comments[0].ID)

		_, err = s.service.ListForCase(ctx, s.outsider, s.caseID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("evidence listing", func() {
		comments, err := s.service.ListForEvidence(ctx, s.investigator, s.evidenceID)
		s.Require().NoError(err)
		s.Require().Len(comments, 1)
		s.Equal(evidenceComment.ID, comments[0].ID)
	})
}
