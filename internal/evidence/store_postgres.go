package evidence

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

const foreignKeyViolation = "23503"

// PostgresStore persists evidence in the evidence and evidence_tags tables.
// Writes join the ambient transaction so the item commits with its custody
// entry and audit record.
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

const itemColumns = `
	id, case_id, uploader, name, description, content_hash, file_ref,
	status, version, created_at, updated_at
`

// Insert adds an item. A foreign-key violation on case_id maps to
// sentinel.ErrNotFound: the parent case is gone.
func (s *PostgresStore) Insert(ctx context.Context, item Item) error {
	const query = `
		INSERT INTO evidence (
			id, case_id, uploader, name, description, content_hash, file_ref,
			status, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(item.ID),
		uuid.UUID(item.CaseID),
		uuid.UUID(item.Uploader),
		item.Name,
		item.Description,
		item.ContentHash,
		item.FileRef,
		string(item.Status),
		item.Version,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == foreignKeyViolation {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

// FindByID looks an item up by id.
func (s *PostgresStore) FindByID(ctx context.Context, id domain.EvidenceID) (Item, error) {
	query := `SELECT ` + itemColumns + ` FROM evidence WHERE id = $1`
	return scanItemRow(s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(id)))
}

// UpdateStatus applies an optimistic-locked status change.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id domain.EvidenceID, status domain.EvidenceStatus, version int64) (Item, error) {
	const query = `
		UPDATE evidence
		SET status = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING ` + itemColumns
	row := s.querier(ctx).QueryRowContext(ctx, query, string(status), uuid.UUID(id), version)
	item, err := scanItemRow(row)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			if _, findErr := s.FindByID(ctx, id); findErr == nil {
				return Item{}, sentinel.ErrVersionMismatch
			}
			return Item{}, sentinel.ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// BumpVersion advances the version column.
func (s *PostgresStore) BumpVersion(ctx context.Context, id domain.EvidenceID) error {
	const query = `UPDATE evidence SET version = version + 1, updated_at = now() WHERE id = $1`
	res, err := s.querier(ctx).ExecContext(ctx, query, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("bump evidence version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump evidence version: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ListForCase returns the case's items, newest first.
func (s *PostgresStore) ListForCase(ctx context.Context, caseID domain.CaseID) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM evidence WHERE case_id = $1 ORDER BY created_at DESC`
	rows, err := s.querier(ctx).QueryContext(ctx, query, uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return items, nil
}

// AttachTag associates a tag with an item; idempotent via ON CONFLICT.
func (s *PostgresStore) AttachTag(ctx context.Context, id domain.EvidenceID, tagID domain.TagID) error {
	const query = `
		INSERT INTO evidence_tags (evidence_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT (evidence_id, tag_id) DO NOTHING
	`
	_, err := s.querier(ctx).ExecContext(ctx, query, uuid.UUID(id), uuid.UUID(tagID))
	if err != nil {
		return fmt.Errorf("attach tag: %w", err)
	}
	return nil
}

// DetachTag removes an association.
func (s *PostgresStore) DetachTag(ctx context.Context, id domain.EvidenceID, tagID domain.TagID) error {
	const query = `DELETE FROM evidence_tags WHERE evidence_id = $1 AND tag_id = $2`
	res, err := s.querier(ctx).ExecContext(ctx, query, uuid.UUID(id), uuid.UUID(tagID))
	if err != nil {
		return fmt.Errorf("detach tag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("detach tag: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// TagsFor returns the tag ids associated with an item.
func (s *PostgresStore) TagsFor(ctx context.Context, id domain.EvidenceID) ([]domain.TagID, error) {
	const query = `SELECT tag_id FROM evidence_tags WHERE evidence_id = $1 ORDER BY tag_id`
	rows, err := s.querier(ctx).QueryContext(ctx, query, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("query evidence tags: %w", err)
	}
	defer rows.Close()

	var tagIDs []domain.TagID
	for rows.Next() {
		var tagID uuid.UUID
		if err := rows.Scan(&tagID); err != nil {
			return nil, fmt.Errorf("scan evidence tag: %w", err)
		}
		tagIDs = append(tagIDs, domain.TagID(tagID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence tags: %w", err)
	}
	return tagIDs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItemRow(row *sql.Row) (Item, error) {
	item, err := scanItemFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, sentinel.ErrNotFound
		}
		return Item{}, fmt.Errorf("scan evidence: %w", err)
	}
	return item, nil
}

func scanItem(rows *sql.Rows) (Item, error) {
	item, err := scanItemFrom(rows)
	if err != nil {
		return Item{}, fmt.Errorf("scan evidence: %w", err)
	}
	return item, nil
}

func scanItemFrom(scanner rowScanner) (Item, error) {
	var (
		item     Item
		id       uuid.UUID
		caseID   uuid.UUID
		uploader uuid.UUID
		status   string
	)
	err := scanner.Scan(&id, &caseID, &uploader, &item.Name, &item.Description,
		&item.ContentHash, &item.FileRef, &status, &item.Version, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	item.ID = domain.EvidenceID(id)
	item.CaseID = domain.CaseID(caseID)
	item.Uploader = domain.PrincipalID(uploader)
	item.Status = domain.EvidenceStatus(status)
	return item, nil
}
