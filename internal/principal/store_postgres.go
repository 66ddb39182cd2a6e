package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"custodia/pkg/domain"
	"custodia/pkg/sentinel"
)

// uniqueViolation is the postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// PostgresStore persists directory records in the principals table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore builds a store over the given handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert adds a record, mapping the unique-username violation to
// sentinel.ErrConflict.
func (s *PostgresStore) Insert(ctx context.Context, record Record) error {
	const query = `
		INSERT INTO principals (id, username, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(record.ID),
		record.Username,
		string(record.Role),
		record.PasswordHash,
		record.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert principal: %w", err)
	}
	return nil
}

// FindByUsername looks a record up by username.
func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (Record, error) {
	const query = `
		SELECT id, username, role, password_hash, created_at
		FROM principals
		WHERE username = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, username))
}

// FindByID looks a record up by id.
func (s *PostgresStore) FindByID(ctx context.Context, id domain.PrincipalID) (Record, error) {
	const query = `
		SELECT id, username, role, password_hash, created_at
		FROM principals
		WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(id)))
}

// Exists reports directory membership.
func (s *PostgresStore) Exists(ctx context.Context, id domain.PrincipalID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM principals WHERE id = $1)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, uuid.UUID(id)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check principal existence: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (Record, error) {
	var (
		record Record
		id     uuid.UUID
		role   string
	)
	err := row.Scan(&id, &record.Username, &role, &record.PasswordHash, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, sentinel.ErrNotFound
		}
		return Record{}, fmt.Errorf("scan principal: %w", err)
	}
	record.ID = domain.PrincipalID(id)
	record.Role = domain.Role(role)
	return record, nil
}
