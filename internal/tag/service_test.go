package tag_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"custodia/internal/audit"
	"custodia/internal/tag"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/platform/tx"
)

type ServiceSuite struct {
	suite.Suite

	store      *tag.InMemoryStore
	auditStore *audit.InMemoryStore
	service    *tag.Service
	actor      domain.Principal
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = tag.NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()
	s.service = tag.NewService(s.store, audit.NewRecorder(s.auditStore), tx.PassthroughRunner{})
	s.actor = domain.Principal{ID: domain.NewPrincipalID(), Role: domain.RoleAnalyst}
}

func (s *ServiceSuite) TestCreate() {
	ctx := context.Background()

	s.Run("succeeds and audits", func() {
		t, err := s.service.Create(ctx, s.actor, "biological", "#d33682")
		s.Require().NoError(err)
		s.False(t.ID.IsNil())
		s.Equal(s.actor.ID, t.Creator)

		entries := s.auditStore.All()
		s.Require().Len(entries, 1)
		s.Equal(domain.AuditActionCreateTag, entries[0].Action)
		s.Equal("biological", entries[0].Details["name"])
	})

	s.Run("duplicate name conflicts", func() {
		_, err := s.service.Create(ctx, s.actor, "biological", "#ffffff")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("empty name is rejected", func() {
		_, err := s.service.Create(ctx, s.actor, "", "#ffffff")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestGetAndList() {
	ctx := context.Background()

	digital, err := s.service.Create(ctx, s.actor, "digital", "#268bd2")
	s.Require().NoError(err)
	_, err = s.service.Create(ctx, s.actor, "ballistics", "#dc322f")
	s.Require().NoError(err)

	s.Run("get", func() {
		got, err := s.service.Get(ctx, digital.ID)
		s.Require().NoError(err)
		s.Equal("digital", got.Name)
	})

	s.Run("missing tag is not found", func() {
		_, err := s.service.Get(ctx, domain.NewTagID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("list is ordered by name", func() {
		tags, err := s.service.List(ctx)
		s.Require().NoError(err)
		s.Require().Len(tags, 2)
		s.Equal("ballistics", tags[0].Name)
		s.Equal("digital", tags[1].Name)
	})
}
