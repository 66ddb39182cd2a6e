package casefile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"custodia/pkg/domain"
	txcontext "custodia/pkg/platform/tx"
	"custodia/pkg/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists cases in the cases table. Writes join the ambient
// transaction so the row commits with its audit entry.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore builds a store over the given handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if ambient, ok := txcontext.From(ctx); ok {
		return ambient
	}
	return s.db
}

const caseColumns = `
	id, case_number, title, description, creator, lead_investigator,
	assigned_to, status, priority, version, created_at, updated_at
`

// Insert adds a case, mapping the unique case-number violation to
// sentinel.ErrConflict.
func (s *PostgresStore) Insert(ctx context.Context, c Case) error {
	const query = `
		INSERT INTO cases (
			id, case_number, title, description, creator, lead_investigator,
			assigned_to, status, priority, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		c.Number,
		c.Title,
		c.Description,
		uuid.UUID(c.Creator),
		principalArg(c.LeadInvestigator),
		principalArg(c.AssignedTo),
		string(c.Status),
		string(c.Priority),
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

// FindByID looks a case up by id.
func (s *PostgresStore) FindByID(ctx context.Context, id domain.CaseID) (Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`
	return scanCaseRow(s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(id)))
}

// Update applies an optimistic-locked write: the row must still carry the
// version the caller read.
func (s *PostgresStore) Update(ctx context.Context, c Case) (Case, error) {
	const query = `
		UPDATE cases
		SET title = $1, description = $2, lead_investigator = $3,
		    assigned_to = $4, status = $5, priority = $6,
		    version = version + 1, updated_at = $7
		WHERE id = $8 AND version = $9
		RETURNING ` + caseColumns
	row := s.querier(ctx).QueryRowContext(ctx, query,
		c.Title,
		c.Description,
		principalArg(c.LeadInvestigator),
		principalArg(c.AssignedTo),
		string(c.Status),
		string(c.Priority),
		c.UpdatedAt,
		uuid.UUID(c.ID),
		c.Version,
	)
	updated, err := scanCaseRow(row)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Zero rows: either the case is gone or the version moved.
			if _, findErr := s.FindByID(ctx, c.ID); findErr == nil {
				return Case{}, sentinel.ErrVersionMismatch
			}
			return Case{}, sentinel.ErrNotFound
		}
		return Case{}, err
	}
	return updated, nil
}

// ListAll returns every case, newest first.
func (s *PostgresStore) ListAll(ctx context.Context) ([]Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases ORDER BY created_at DESC`
	return s.listQuery(ctx, query)
}

// ListForPrincipal returns cases the principal is related to, newest first.
func (s *PostgresStore) ListForPrincipal(ctx context.Context, p domain.PrincipalID) ([]Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE creator = $1 OR lead_investigator = $1 OR assigned_to = $1
		ORDER BY created_at DESC
	`
	return s.listQuery(ctx, query, uuid.UUID(p))
}

func (s *PostgresStore) listQuery(ctx context.Context, query string, args ...any) ([]Case, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return cases, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCaseRow(row *sql.Row) (Case, error) {
	c, err := scanCaseFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Case{}, sentinel.ErrNotFound
		}
		return Case{}, fmt.Errorf("scan case: %w", err)
	}
	return c, nil
}

func scanCase(rows *sql.Rows) (Case, error) {
	c, err := scanCaseFrom(rows)
	if err != nil {
		return Case{}, fmt.Errorf("scan case: %w", err)
	}
	return c, nil
}

func scanCaseFrom(scanner rowScanner) (Case, error) {
	var (
		c        Case
		id       uuid.UUID
		creator  uuid.UUID
		lead     *uuid.UUID
		assignee *uuid.UUID
		status   string
		priority string
	)
	err := scanner.Scan(&id, &c.Number, &c.Title, &c.Description, &creator,
		&lead, &assignee, &status, &priority, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Case{}, err
	}
	c.ID = domain.CaseID(id)
	c.Creator = domain.PrincipalID(creator)
	if lead != nil {
		l := domain.PrincipalID(*lead)
		c.LeadInvestigator = &l
	}
	if assignee != nil {
		a := domain.PrincipalID(*assignee)
		c.AssignedTo = &a
	}
	c.Status = domain.CaseStatus(status)
	c.Priority = domain.CasePriority(priority)
	return c, nil
}

func principalArg(p *domain.PrincipalID) any {
	if p == nil {
		return nil
	}
	return uuid.UUID(*p)
}
