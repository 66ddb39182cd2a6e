package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/requestcontext"
)

type RecorderSuite struct {
	suite.Suite

	store    *InMemoryStore
	recorder *Recorder
	actor    domain.Principal
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.recorder = NewRecorder(s.store)
	s.actor = domain.Principal{ID: domain.NewPrincipalID(), Role: domain.RoleInvestigator}
}

func (s *RecorderSuite) TestRecord() {
	ctx := context.Background()
	resourceID := domain.NewCaseID().String()

	entry, err := s.recorder.Record(ctx, s.actor, domain.AuditActionCreateCase, domain.ResourceCase, resourceID, map[string]string{
		"case_number": "2026-0500",
	})
	s.Require().NoError(err)

	s.False(entry.ID.IsNil())
	s.Equal(s.actor.ID, entry.Principal)
	s.Equal(domain.AuditActionCreateCase, entry.Action)
	s.Equal(domain.ResourceCase, entry.ResourceType)
	s.Equal(resourceID, entry.ResourceID)
	s.Equal("2026-0500", entry.Details["case_number"])
	s.False(entry.Timestamp.IsZero())

	s.Require().Len(s.store.All(), 1)
	s.Equal(entry.ID, s.store.All()[0].ID)
}

func (s *RecorderSuite) TestRecordUsesRequestTime() {
	at := time.Date(2026, 8, 26, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), at)

	entry, err := s.recorder.Record(ctx, s.actor, domain.AuditActionUpdateCase, domain.ResourceCase, domain.NewCaseID().String(), nil)
	s.Require().NoError(err)
	s.Equal(at, entry.Timestamp)
}

func (s *RecorderSuite) TestRecordValidation() {
	ctx := context.Background()
	id := domain.NewCaseID().String()

	s.Run("unknown action", func() {
		_, err := s.recorder.Record(ctx, s.actor, "Reticulate", domain.ResourceCase, id, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown resource type", func() {
		_, err := s.recorder.Record(ctx, s.actor, domain.AuditActionUpdateCase, "widget", id, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing principal", func() {
		_, err := s.recorder.Record(ctx, domain.Principal{}, domain.AuditActionUpdateCase, domain.ResourceCase, id, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	s.Empty(s.store.All())
}

func (s *RecorderSuite) TestDetailTruncation() {
	recorder := NewRecorder(s.store, WithDetailCap(16))
	long := strings.Repeat("x", 40)

	entry, err := recorder.Record(context.Background(), s.actor, domain.AuditActionAddComment, domain.ResourceComment, domain.NewCommentID().String(), map[string]string{
		"body":  long,
		"short": "kept",
	})
	s.Require().NoError(err)

	s.Len(entry.Details["body"], 16)
	s.True(strings.HasSuffix(entry.Details["body"], "..."))
	s.Equal("kept", entry.Details["short"])
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"under limit", "short", 10, "short"},
		{"at limit", "exact", 5, "exact"},
		{"over limit", "0123456789", 8, "01234..."},
		{"tiny limit keeps no marker", "abcdef", 2, "ab"},
		{"zero limit disables clipping", "anything", 0, "anything"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Truncate(tc.in, tc.limit); got != tc.want {
				t.Fatalf("Truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
			}
		})
	}
}
