package comment

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

// PostgresStore persists comments in the comments table. Writes join the
// ambient transaction so the comment commits with its audit entry.
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

const commentColumns = `id, case_id, evidence_id, author, body, created_at`

// Insert adds a comment.
func (s *PostgresStore) Insert(ctx context.Context, c Comment) error {
	const query = `
		INSERT INTO comments (id, case_id, evidence_id, author, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var caseID, evidenceID any
	if c.CaseID != nil {
		caseID = uuid.UUID(*c.CaseID)
	}
	if c.EvidenceID != nil {
		evidenceID = uuid.UUID(*c.EvidenceID)
	}
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID), caseID, evidenceID, uuid.UUID(c.Author), c.Body, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// FindByID looks a comment up by id.
func (s *PostgresStore) FindByID(ctx context.Context, id domain.CommentID) (Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`
	c, err := scanCommentFrom(s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Comment{}, sentinel.ErrNotFound
		}
		return Comment{}, fmt.Errorf("scan comment: %w", err)
	}
	return c, nil
}

// ListForCase returns a case's comments, newest first.
func (s *PostgresStore) ListForCase(ctx context.Context, caseID domain.CaseID) ([]Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE case_id = $1 ORDER BY created_at DESC`
	return s.listQuery(ctx, query, uuid.UUID(caseID))
}

// ListForEvidence returns an item's comments, newest first.
func (s *PostgresStore) ListForEvidence(ctx context.Context, evidenceID domain.EvidenceID) ([]Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE evidence_id = $1 ORDER BY created_at DESC`
	return s.listQuery(ctx, query, uuid.UUID(evidenceID))
}

func (s *PostgresStore) listQuery(ctx context.Context, query string, args ...any) ([]Comment, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		c, err := scanCommentFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommentFrom(scanner rowScanner) (Comment, error) {
	var (
		c          Comment
		id         uuid.UUID
		caseID     *uuid.UUID
		evidenceID *uuid.UUID
		author     uuid.UUID
	)
	err := scanner.Scan(&id, &caseID, &evidenceID, &author, &c.Body, &c.CreatedAt)
	if err != nil {
		return Comment{}, err
	}
	c.ID = domain.CommentID(id)
	if caseID != nil {
		cid := domain.CaseID(*caseID)
		c.CaseID = &cid
	}
	if evidenceID != nil {
		eid := domain.EvidenceID(*evidenceID)
		c.EvidenceID = &eid
	}
	c.Author = domain.PrincipalID(author)
	return c, nil
}
