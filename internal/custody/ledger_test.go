package custody_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/internal/audit"
	"custodia/internal/casefile"
	"custodia/internal/comment"
	"custodia/internal/custody"
	"custodia/internal/evidence"
	"custodia/internal/policy"
	"custodia/internal/principal"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/platform/tx"
)

type LedgerSuite struct {
	suite.Suite

	store      *custody.InMemoryStore
	cases      *casefile.InMemoryStore
	evidence   *evidence.InMemoryStore
	comments   *comment.InMemoryStore
	auditStore *audit.InMemoryStore
	principals *principal.InMemoryStore
	ledger     *custody.Ledger

	investigator domain.Principal
	analyst      domain.Principal
	outsider     domain.Principal

	caseID     domain.CaseID
	evidenceID domain.EvidenceID
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	ctx := context.Background()
	now := time.Now().UTC()

	s.store = custody.NewInMemoryStore()
	s.evidence = evidence.NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()
	s.principals = principal.NewInMemoryStore()
	s.cases = casefile.NewInMemoryStore()
	s.comments = comment.NewInMemoryStore()

	s.investigator = domain.Principal{ID: domain.NewPrincipalID(), Role: domain.RoleInvestigator}
	s.analyst = domain.Principal{ID: domain.NewPrincipalID(), Role: domain.RoleAnalyst}
	s.outsider = domain.Principal{ID: domain.NewPrincipalID(), Role: domain.RoleLegal}

	for name, p := range map[string]domain.Principal{
		"holt":     s.investigator,
		"diaz":     s.analyst,
		"bystrand": s.outsider,
	} {
		s.Require().NoError(s.principals.Insert(ctx, principal.Record{
			ID: p.ID, Username: name, Role: p.Role, CreatedAt: now,
		}))
	}

	s.caseID = domain.NewCaseID()
	s.Require().NoError(s.cases.Insert(ctx, casefile.Case{
		ID:        s.caseID,
		Number:    "2026-0300",
		Title:     "storage unit arson",
		Creator:   s.investigator.ID,
		Status:    domain.CaseStatusOpen,
		Priority:  domain.CasePriorityHigh,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	s.evidenceID = domain.NewEvidenceID()
	s.Require().NoError(s.evidence.Insert(ctx, evidence.Item{
		ID:        s.evidenceID,
		CaseID:    s.caseID,
		Uploader:  s.investigator.ID,
		Name:      "accelerant container",
		Status:    domain.EvidenceStatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	engine := policy.NewEngine(&policy.MemoryRelationSource{
		Cases:    s.cases,
		Evidence: s.evidence,
		Comments: s.comments,
		Custody:  s.store,
	})
	recorder := audit.NewRecorder(s.auditStore)
	s.ledger = custody.NewLedger(s.store, engine, recorder, s.principals, s.evidence, tx.PassthroughRunner{}, nil)
}

func (s *LedgerSuite) append(p domain.Principal, req custody.AppendRequest) (custody.Entry, error) {
	return s.ledger.Append(context.Background(), p, req)
}

func (s *LedgerSuite) transferReq(from, to domain.PrincipalID) custody.AppendRequest {
	return custody.AppendRequest{
		EvidenceID: s.evidenceID,
		Action:     domain.CustodyActionTransferred,
		From:       &from,
		To:         &to,
		Location:   "evidence room B",
	}
}

func (s *LedgerSuite) TestAppendValidation() {
	from := s.investigator.ID

	s.Run("missing evidence id", func() {
		_, err := s.append(s.investigator, custody.AppendRequest{
			Action: domain.CustodyActionAccessed, From: &from, Location: "lab",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown action", func() {
		_, err := s.append(s.investigator, custody.AppendRequest{
			EvidenceID: s.evidenceID, Action: "misplaced", From: &from, Location: "lab",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing location", func() {
		_, err := s.append(s.investigator, custody.AppendRequest{
			EvidenceID: s.evidenceID, Action: domain.CustodyActionAccessed, From: &from,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("neither from nor to", func() {
		_, err := s.append(s.investigator, custody.AppendRequest{
			EvidenceID: s.evidenceID, Action: domain.CustodyActionAccessed, Location: "lab",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("principal not in the directory", func() {
		ghost := domain.NewPrincipalID()
		_, err := s.append(s.investigator, custody.AppendRequest{
			EvidenceID: s.evidenceID, Action: domain.CustodyActionAccessed, From: &ghost, Location: "lab",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *LedgerSuite) TestAppendAccessControl() {
	from := s.investigator.ID

	s.Run("unrelated principal gets forbidden", func() {
		_, err := s.append(s.outsider, custody.AppendRequest{
			EvidenceID: s.evidenceID, Action: domain.CustodyActionAccessed, From: &from, Location: "lab",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing evidence gets not found", func() {
		_, err := s.append(s.investigator, custody.AppendRequest{
			EvidenceID: domain.NewEvidenceID(), Action: domain.CustodyActionAccessed, From: &from, Location: "lab",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *LedgerSuite) TestAppendChainsEntries() {
	ctx := context.Background()
	from := s.investigator.ID

	first, err := s.append(s.investigator, custody.AppendRequest{
		EvidenceID: s.evidenceID, Action: domain.CustodyActionCreated, To: &from, Location: "intake desk",
	})
	s.Require().NoError(err)
	second, err := s.append(s.investigator, s.transferReq(s.investigator.ID, s.analyst.ID))
	s.Require().NoError(err)
	third, err := s.append(s.investigator, custody.AppendRequest{
		EvidenceID: s.evidenceID, Action: domain.CustodyActionAccessed, From: &from, Location: "lab",
	})
	s.Require().NoError(err)

	s.Run("hash linkage", func() {
		s.Empty(first.PrevHash)
		s.Equal(first.EntryHash, second.PrevHash)
		s.Equal(second.EntryHash, third.PrevHash)
		s.Equal(third.ComputeHash(), third.EntryHash)
	})

	s.Run("timestamps strictly increase per item", func() {
		s.True(second.Timestamp.After(first.Timestamp))
		s.True(third.Timestamp.After(second.Timestamp))
	})

	s.Run("reads come back newest first", func() {
		entries, err := s.ledger.ListFor(ctx, s.investigator, s.evidenceID)
		s.Require().NoError(err)
		s.Require().Len(entries, 3)
		s.Equal(third.ID, entries[0].ID)
		s.Equal(first.ID, entries[2].ID)
	})

	s.Run("reads are gated", func() {
		_, err := s.ledger.ListFor(ctx, s.outsider, s.evidenceID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *LedgerSuite) TestTransferBumpsVersionAndAuditsAsTransfer() {
	ctx := context.Background()

	before, err := s.evidence.FindByID(ctx, s.evidenceID)
	s.Require().NoError(err)

	_, err = s.append(s.investigator, s.transferReq(s.investigator.ID, s.analyst.ID))
	s.Require().NoError(err)

	after, err := s.evidence.FindByID(ctx, s.evidenceID)
	s.Require().NoError(err)
	s.Equal(before.Version+1, after.Version)

	entries := s.auditStore.All()
	s.Require().Len(entries, 1)
	s.Equal(domain.AuditActionTransferCustody, entries[0].Action)
	s.Equal(s.evidenceID.String(), entries[0].ResourceID)
	s.Equal(s.analyst.ID.String(), entries[0].Details["to"])
}

func (s *LedgerSuite) TestAccessEntryLeavesVersionAloneAndAuditsAsAppend() {
	ctx := context.Background()
	from := s.investigator.ID

	before, err := s.evidence.FindByID(ctx, s.evidenceID)
	s.Require().NoError(err)

	_, err = s.append(s.investigator, custody.AppendRequest{
		EvidenceID: s.evidenceID, Action: domain.CustodyActionAccessed, From: &from, Location: "lab",
	})
	s.Require().NoError(err)

	after, err := s.evidence.FindByID(ctx, s.evidenceID)
	s.Require().NoError(err)
	s.Equal(before.Version, after.Version)

	entries := s.auditStore.All()
	s.Require().Len(entries, 1)
	s.Equal(domain.AuditActionAppendCustody, entries[0].Action)
}

func (s *LedgerSuite) TestConcurrentAppendsSerialize() {
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := s.investigator.ID
			_, errs[i] = s.append(s.investigator, custody.AppendRequest{
				EvidenceID: s.evidenceID, Action: domain.CustodyActionAccessed, From: &from, Location: "lab",
			})
		}(i)
	}
	wg.Wait()
	s.NoError(errs[0])
	s.NoError(errs[1])

	entries, err := s.store.ListOldestFirst(context.Background(), s.evidenceID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.NotEqual(entries[0].ID, entries[1].ID)
	s.True(entries[1].Timestamp.After(entries[0].Timestamp))
	s.Equal(entries[0].EntryHash, entries[1].PrevHash)
}

func (s *LedgerSuite) TestVerify() {
	ctx := context.Background()
	to := s.investigator.ID

	_, err := s.append(s.investigator, custody.AppendRequest{
		EvidenceID: s.evidenceID, Action: domain.CustodyActionCreated, To: &to, Location: "intake desk",
	})
	s.Require().NoError(err)
	_, err = s.append(s.investigator, s.transferReq(s.investigator.ID, s.analyst.ID))
	s.Require().NoError(err)

	s.Run("intact chain", func() {
		report, err := s.ledger.Verify(ctx, s.investigator, s.evidenceID)
		s.Require().NoError(err)
		s.True(report.Intact)
		s.Equal(2, report.Entries)
		s.Nil(report.BrokenAt)
	})

	s.Run("tampered payload is detected", func() {
		// Plant an entry whose stored hash no longer matches its payload,
		// the way an after-the-fact edit of a row would look.
		tampered, err := s.store.AppendChained(ctx, s.evidenceID, func(prev *custody.Entry) (custody.Entry, error) {
			from := s.analyst.ID
			e := custody.NewChainedEntry(s.evidenceID, domain.CustodyActionAccessed,
				&from, nil, "lab", "", time.Now().UTC(), prev)
			e.Notes = "rewritten after signing"
			return e, nil
		})
		s.Require().NoError(err)

		report, err := s.ledger.Verify(ctx, s.investigator, s.evidenceID)
		s.Require().NoError(err)
		s.False(report.Intact)
		s.Require().NotNil(report.BrokenAt)
		s.Equal(tampered.ID, *report.BrokenAt)
		s.Contains(report.Reason, "hash")
	})
}

func (s *LedgerSuite) TestVerifyDetectsBrokenLinkage() {
	ctx := context.Background()
	to := s.investigator.ID

	_, err := s.append(s.investigator, custody.AppendRequest{
		EvidenceID: s.evidenceID, Action: domain.CustodyActionCreated, To: &to, Location: "intake desk",
	})
	s.Require().NoError(err)

	// An entry whose PrevHash ignores the tail simulates a deleted or
	// reordered predecessor.
	unlinked, err := s.store.AppendChained(ctx, s.evidenceID, func(_ *custody.Entry) (custody.Entry, error) {
		from := s.investigator.ID
		return custody.NewChainedEntry(s.evidenceID, domain.CustodyActionAccessed,
			&from, nil, "lab", "", time.Now().UTC(), nil), nil
	})
	s.Require().NoError(err)

	report, err := s.ledger.Verify(ctx, s.investigator, s.evidenceID)
	s.Require().NoError(err)
	s.False(report.Intact)
	s.Require().NotNil(report.BrokenAt)
	s.Equal(unlinked.ID, *report.BrokenAt)
	s.Contains(report.Reason, "linkage")
}

// failingAuditStore refuses every append, standing in for an audit table
// that cannot be written.
type failingAuditStore struct {
	audit.Store
}

func (failingAuditStore) Append(context.Context, audit.Entry) error {
	return context.DeadlineExceeded
}

func (s *LedgerSuite) TestAuditFailureFailsTheAppend() {
	engine := policy.NewEngine(&policy.MemoryRelationSource{
		Cases:    s.cases,
		Evidence: s.evidence,
		Comments: s.comments,
		Custody:  s.store,
	})
	recorder := audit.NewRecorder(failingAuditStore{})
	broken := custody.NewLedger(s.store, engine, recorder, s.principals, s.evidence, tx.PassthroughRunner{}, nil)

	_, err := broken.Append(context.Background(), s.investigator, s.transferReq(s.investigator.ID, s.analyst.ID))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
