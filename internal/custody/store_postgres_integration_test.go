//go:build integration

package custody_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"custodia/internal/casefile"
	"custodia/internal/custody"
	"custodia/internal/evidence"
	"custodia/internal/principal"
	"custodia/pkg/domain"
	"custodia/pkg/platform/tx"
	"custodia/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite

	pg     *containers.PostgresContainer
	store  *custody.PostgresStore
	runner tx.Runner

	holder     domain.PrincipalID
	receiver   domain.PrincipalID
	evidenceID domain.EvidenceID
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = custody.NewPostgresStore(s.pg.DB)
	s.runner = tx.NewSQLRunner(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateAll(ctx))

	principals := principal.NewPostgresStore(s.pg.DB)
	seed := func(username string) domain.PrincipalID {
		id := domain.NewPrincipalID()
		s.Require().NoError(principals.Insert(ctx, principal.Record{
			ID:           id,
			Username:     username,
			Role:         domain.RoleInvestigator,
			PasswordHash: []byte("not used here"),
			CreatedAt:    time.Now().UTC(),
		}))
		return id
	}
	s.holder = seed("holt")
	s.receiver = seed("diaz")

	now := time.Now().UTC().Truncate(time.Microsecond)
	caseID := domain.NewCaseID()
	s.Require().NoError(casefile.NewPostgresStore(s.pg.DB).Insert(ctx, casefile.Case{
		ID:        caseID,
		Number:    "2026-0830",
		Title:     "vehicle theft ring",
		Creator:   s.holder,
		Status:    domain.CaseStatusOpen,
		Priority:  domain.CasePriorityMedium,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	s.evidenceID = domain.NewEvidenceID()
	s.Require().NoError(evidence.NewPostgresStore(s.pg.DB).Insert(ctx, evidence.Item{
		ID:          s.evidenceID,
		CaseID:      caseID,
		Uploader:    s.holder,
		Name:        "dashcam card",
		ContentHash: "sha256:4f2d",
		Status:      domain.EvidenceStatusPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
}

// append runs one chained append inside its own transaction, the way the
// ledger does, so the tail lock actually covers the read-build-insert span.
func (s *PostgresStoreSuite) append(action domain.CustodyAction, from, to *domain.PrincipalID, location string) custody.Entry {
	var entry custody.Entry
	err := s.runner.RunInTx(context.Background(), func(ctx context.Context) error {
		var err error
		entry, err = s.store.AppendChained(ctx, s.evidenceID, func(prev *custody.Entry) (custody.Entry, error) {
			return custody.NewChainedEntry(s.evidenceID, action, from, to, location, "", time.Now().UTC(), prev), nil
		})
		return err
	})
	s.Require().NoError(err)
	return entry
}

func (s *PostgresStoreSuite) TestAppendChainsAcrossRoundTrips() {
	ctx := context.Background()

	first := s.append(domain.CustodyActionCreated, nil, &s.holder, "intake locker 3")
	holder := s.holder
	second := s.append(domain.CustodyActionTransferred, &holder, &s.receiver, "forensics lab")

	s.Empty(first.PrevHash)
	s.Equal(first.EntryHash, second.PrevHash)

	entries, err := s.store.ListOldestFirst(ctx, s.evidenceID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	for i, e := range entries {
		s.Equal(e.ComputeHash(), e.EntryHash)
		if i > 0 {
			s.Equal(entries[i-1].EntryHash, e.PrevHash)
			s.True(e.Timestamp.After(entries[i-1].Timestamp))
		}
	}

	newest, err := s.store.ListNewestFirst(ctx, s.evidenceID)
	s.Require().NoError(err)
	s.Require().Len(newest, 2)
	s.Equal(second.ID, newest[0].ID)
}

func (s *PostgresStoreSuite) TestConcurrentAppendsSerializeOnTheTailLock() {
	ctx := context.Background()
	s.append(domain.CustodyActionCreated, nil, &s.holder, "intake locker 3")

	var group errgroup.Group
	for i := 0; i < 2; i++ {
		group.Go(func() error {
			holder := s.holder
			return s.runner.RunInTx(ctx, func(ctx context.Context) error {
				_, err := s.store.AppendChained(ctx, s.evidenceID, func(prev *custody.Entry) (custody.Entry, error) {
					return custody.NewChainedEntry(s.evidenceID, domain.CustodyActionAccessed, &holder, nil, "evidence room", "", time.Now().UTC(), prev), nil
				})
				return err
			})
		})
	}
	s.Require().NoError(group.Wait())

	entries, err := s.store.ListOldestFirst(ctx, s.evidenceID)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)

	prevHash := ""
	var prevTime time.Time
	for _, e := range entries {
		s.Equal(prevHash, e.PrevHash)
		s.Equal(e.ComputeHash(), e.EntryHash)
		s.True(e.Timestamp.After(prevTime))
		prevHash = e.EntryHash
		prevTime = e.Timestamp
	}
}
