package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"custodia/pkg/domain"
	txcontext "custodia/pkg/platform/tx"
	"custodia/pkg/sentinel"
)

// PostgresRelationSource reads entity relations from PostgreSQL. When the
// caller already runs inside a transaction (mutating unit of work) the
// snapshot joins it; otherwise a read-only transaction is opened so every
// relation read within one evaluation sees the same committed state.
type PostgresRelationSource struct {
	db *sql.DB
}

// NewPostgresRelationSource builds a relation source over the given handle.
func NewPostgresRelationSource(db *sql.DB) *PostgresRelationSource {
	return &PostgresRelationSource{db: db}
}

type pgQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Snapshot returns a consistent relation view. The release func is a no-op
// when joining an ambient transaction and rolls back the read transaction
// otherwise.
func (s *PostgresRelationSource) Snapshot(ctx context.Context) (Snapshot, func(), error) {
	if ambient, ok := txcontext.From(ctx); ok {
		return &pgSnapshot{q: ambient}, func() {}, nil
	}
	readTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin relation snapshot: %w", err)
	}
	return &pgSnapshot{q: readTx}, func() { _ = readTx.Rollback() }, nil
}

type pgSnapshot struct {
	q pgQuerier
}

func (s *pgSnapshot) Case(ctx context.Context, id domain.CaseID) (CaseRelations, error) {
	const query = `
		SELECT creator, lead_investigator, assigned_to, version
		FROM cases
		WHERE id = $1
	`
	var (
		rel      CaseRelations
		lead     *uuid.UUID
		assignee *uuid.UUID
		creator  uuid.UUID
	)
	err := s.q.QueryRowContext(ctx, query, uuid.UUID(id)).Scan(&creator, &lead, &assignee, &rel.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CaseRelations{}, sentinel.ErrNotFound
		}
		return CaseRelations{}, fmt.Errorf("read case relations: %w", err)
	}
	rel.Creator = domain.PrincipalID(creator)
	if lead != nil {
		l := domain.PrincipalID(*lead)
		rel.LeadInvestigator = &l
	}
	if assignee != nil {
		a := domain.PrincipalID(*assignee)
		rel.AssignedTo = &a
	}
	return rel, nil
}

func (s *pgSnapshot) Evidence(ctx context.Context, id domain.EvidenceID) (EvidenceRelations, error) {
	const query = `
		SELECT case_id, uploader, version
		FROM evidence
		WHERE id = $1
	`
	var (
		rel      EvidenceRelations
		caseID   uuid.UUID
		uploader uuid.UUID
	)
	err := s.q.QueryRowContext(ctx, query, uuid.UUID(id)).Scan(&caseID, &uploader, &rel.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EvidenceRelations{}, sentinel.ErrNotFound
		}
		return EvidenceRelations{}, fmt.Errorf("read evidence relations: %w", err)
	}
	rel.CaseID = domain.CaseID(caseID)
	rel.Uploader = domain.PrincipalID(uploader)

	// The custody ledger is read fresh on every evaluation; a principal who
	// received custody a moment ago must see the item now.
	const custodyQuery = `
		SELECT DISTINCT to_principal
		FROM custody_entries
		WHERE evidence_id = $1 AND to_principal IS NOT NULL
	`
	rows, err := s.q.QueryContext(ctx, custodyQuery, uuid.UUID(id))
	if err != nil {
		return EvidenceRelations{}, fmt.Errorf("read custodians: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var custodian uuid.UUID
		if err := rows.Scan(&custodian); err != nil {
			return EvidenceRelations{}, fmt.Errorf("scan custodian: %w", err)
		}
		rel.Custodians = append(rel.Custodians, domain.PrincipalID(custodian))
	}
	if err := rows.Err(); err != nil {
		return EvidenceRelations{}, fmt.Errorf("iterate custodians: %w", err)
	}
	return rel, nil
}

func (s *pgSnapshot) Comment(ctx context.Context, id domain.CommentID) (CommentRelations, error) {
	const query = `
		SELECT case_id, evidence_id
		FROM comments
		WHERE id = $1
	`
	var (
		rel        CommentRelations
		caseID     *uuid.UUID
		evidenceID *uuid.UUID
	)
	err := s.q.QueryRowContext(ctx, query, uuid.UUID(id)).Scan(&caseID, &evidenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CommentRelations{}, sentinel.ErrNotFound
		}
		return CommentRelations{}, fmt.Errorf("read comment relations: %w", err)
	}
	if caseID != nil {
		c := domain.CaseID(*caseID)
		rel.CaseID = &c
	}
	if evidenceID != nil {
		e := domain.EvidenceID(*evidenceID)
		rel.EvidenceID = &e
	}
	return rel, nil
}
