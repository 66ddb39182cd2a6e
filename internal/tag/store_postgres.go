package tag

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

// PostgresStore persists tags in the tags table.
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

// Insert adds a tag, mapping the unique-name violation to
// sentinel.ErrConflict.
func (s *PostgresStore) Insert(ctx context.Context, t Tag) error {
	const query = `
		INSERT INTO tags (id, name, color, creator, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(t.ID), t.Name, t.Color, uuid.UUID(t.Creator), t.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

// FindByID looks a tag up by id.
func (s *PostgresStore) FindByID(ctx context.Context, id domain.TagID) (Tag, error) {
	const query = `SELECT id, name, color, creator, created_at FROM tags WHERE id = $1`
	var (
		t       Tag
		tagID   uuid.UUID
		creator uuid.UUID
	)
	err := s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(id)).
		Scan(&tagID, &t.Name, &t.Color, &creator, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tag{}, sentinel.ErrNotFound
		}
		return Tag{}, fmt.Errorf("scan tag: %w", err)
	}
	t.ID = domain.TagID(tagID)
	t.Creator = domain.PrincipalID(creator)
	return t, nil
}

// ListAll returns every tag, ordered by name.
func (s *PostgresStore) ListAll(ctx context.Context) ([]Tag, error) {
	const query = `SELECT id, name, color, creator, created_at FROM tags ORDER BY name`
	rows, err := s.querier(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var (
			t       Tag
			tagID   uuid.UUID
			creator uuid.UUID
		)
		if err := rows.Scan(&tagID, &t.Name, &t.Color, &creator, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		t.ID = domain.TagID(tagID)
		t.Creator = domain.PrincipalID(creator)
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}
