package custody

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"custodia/internal/audit"
	"custodia/internal/platform/metrics"
	"custodia/internal/policy"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

// PrincipalDirectory resolves whether a principal id refers to a real
// principal. Custody entries may only name principals that exist.
type PrincipalDirectory interface {
	Exists(ctx context.Context, id domain.PrincipalID) (bool, error)
}

// VersionBumper invalidates cached access decisions for an evidence item.
// A custody append with a toPrincipal changes the item's accessor set, so
// the version must move in the same transaction.
type VersionBumper interface {
	BumpVersion(ctx context.Context, id domain.EvidenceID) error
}

// AppendRequest carries one custody event. EvidenceID, Action, and Location
// are required; at least one of From/To must be present.
type AppendRequest struct {
	EvidenceID domain.EvidenceID
	Action     domain.CustodyAction
	From       *domain.PrincipalID
	To         *domain.PrincipalID
	Location   string
	Notes      string
}

// Ledger is the chain-of-custody service: validated appends, gated reads,
// and chain verification.
type Ledger struct {
	store      Store
	authorizer policy.Authorizer
	recorder   *audit.Recorder
	directory  PrincipalDirectory
	versions   VersionBumper
	runner     tx.Runner
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// NewLedger wires the custody service.
func NewLedger(store Store, authorizer policy.Authorizer, recorder *audit.Recorder, directory PrincipalDirectory, versions VersionBumper, runner tx.Runner, m *metrics.Metrics) *Ledger {
	return &Ledger{
		store:      store,
		authorizer: authorizer,
		recorder:   recorder,
		directory:  directory,
		versions:   versions,
		runner:     runner,
		metrics:    m,
		tracer:     otel.Tracer("custodia/custody"),
	}
}

// Append validates and writes one custody entry. The entry, the evidence
// version bump, and the audit record commit as one unit; any failure rolls
// all three back.
func (l *Ledger) Append(ctx context.Context, p domain.Principal, req AppendRequest) (Entry, error) {
	ctx, span := l.tracer.Start(ctx, "custody.Append", trace.WithAttributes(
		attribute.String("custody.action", string(req.Action)),
	))
	defer span.End()

	if err := l.validate(ctx, req); err != nil {
		return Entry{}, err
	}

	var entry Entry
	err := l.runner.RunInTx(ctx, func(ctx context.Context) error {
		// The policy check runs inside the transaction so it observes the
		// same relation state the append will commit against. Authorize
		// also yields NotFound for missing evidence.
		if err := l.authorizer.Authorize(ctx, p, policy.ActionUpdate, policy.EvidenceRef(req.EvidenceID)); err != nil {
			return err
		}

		appended, err := l.store.AppendChained(ctx, req.EvidenceID, func(prev *Entry) (Entry, error) {
			ts := requestcontext.Now(ctx).UTC()
			return NewChainedEntry(req.EvidenceID, req.Action, req.From, req.To, req.Location, req.Notes, ts, prev), nil
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "append custody entry")
		}
		entry = appended

		if req.To != nil {
			if err := l.versions.BumpVersion(ctx, req.EvidenceID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "bump evidence version")
			}
		}

		_, err = l.recorder.Record(ctx, p, auditActionFor(req.Action), domain.ResourceEvidence, req.EvidenceID.String(), map[string]string{
			"entry_id": entry.ID.String(),
			"action":   string(req.Action),
			"from":     principalString(req.From),
			"to":       principalString(req.To),
			"location": req.Location,
			"notes":    req.Notes,
		})
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	l.metrics.RecordCustodyAppend(string(req.Action))
	return entry, nil
}

// ListFor returns the item's chain newest first, gated by the evidence read
// rule (custody entries inherit it).
func (l *Ledger) ListFor(ctx context.Context, p domain.Principal, evidenceID domain.EvidenceID) ([]Entry, error) {
	if err := l.authorizer.Authorize(ctx, p, policy.ActionView, policy.CustodyEntryRef(evidenceID)); err != nil {
		return nil, err
	}
	entries, err := l.store.ListNewestFirst(ctx, evidenceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list custody entries")
	}
	return entries, nil
}

// Verify walks the item's chain oldest-first and reports the first broken
// hash link, if any. Gated like any other custody read.
func (l *Ledger) Verify(ctx context.Context, p domain.Principal, evidenceID domain.EvidenceID) (VerifyReport, error) {
	if err := l.authorizer.Authorize(ctx, p, policy.ActionView, policy.CustodyEntryRef(evidenceID)); err != nil {
		return VerifyReport{}, err
	}
	entries, err := l.store.ListOldestFirst(ctx, evidenceID)
	if err != nil {
		return VerifyReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "list custody entries")
	}
	return verifyChain(entries), nil
}

func (l *Ledger) validate(ctx context.Context, req AppendRequest) error {
	if req.EvidenceID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "evidence id is required")
	}
	if !req.Action.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown custody action: %s", req.Action)
	}
	if req.Location == "" {
		return dErrors.New(dErrors.CodeValidation, "location is required")
	}
	if req.From == nil && req.To == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one of from/to principal is required")
	}
	for _, ref := range []*domain.PrincipalID{req.From, req.To} {
		if ref == nil {
			continue
		}
		exists, err := l.directory.Exists(ctx, *ref)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "resolve principal")
		}
		if !exists {
			return dErrors.Newf(dErrors.CodeValidation, "principal %s does not exist", ref)
		}
	}
	return nil
}

func auditActionFor(action domain.CustodyAction) domain.AuditAction {
	if action == domain.CustodyActionTransferred {
		return domain.AuditActionTransferCustody
	}
	return domain.AuditActionAppendCustody
}

func principalString(p *domain.PrincipalID) string {
	if p == nil {
		return ""
	}
	return p.String()
}
