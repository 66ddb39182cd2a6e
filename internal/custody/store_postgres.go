package custody

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"custodia/pkg/domain"
	txcontext "custodia/pkg/platform/tx"
)

// PostgresStore persists custody entries in the custody_entries table.
// Writes join the ambient transaction; the chain tail is locked with
// FOR UPDATE so concurrent appends for the same item serialize at the row
// level and both commit with correctly ordered timestamps.
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

// AppendChained locks the latest entry for the item, builds the new entry
// against it, and inserts. Callers run inside a transaction; without one the
// tail lock does not extend past the select and concurrent appends may race.
func (s *PostgresStore) AppendChained(ctx context.Context, evidenceID domain.EvidenceID, build func(prev *Entry) (Entry, error)) (Entry, error) {
	q := s.querier(ctx)

	const latestQuery = `
		SELECT id, evidence_id, action, from_principal, to_principal,
		       location, notes, timestamp, prev_hash, entry_hash
		FROM custody_entries
		WHERE evidence_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
		FOR UPDATE
	`
	var prev *Entry
	row := q.QueryRowContext(ctx, latestQuery, uuid.UUID(evidenceID))
	latest, err := scanEntryRow(row)
	switch {
	case err == nil:
		prev = &latest
	case errors.Is(err, sql.ErrNoRows):
		prev = nil
	default:
		return Entry{}, fmt.Errorf("read chain tail: %w", err)
	}

	entry, err := build(prev)
	if err != nil {
		return Entry{}, err
	}

	const insertQuery = `
		INSERT INTO custody_entries (
			id, evidence_id, action, from_principal, to_principal,
			location, notes, timestamp, prev_hash, entry_hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = q.ExecContext(ctx, insertQuery,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.EvidenceID),
		string(entry.Action),
		principalArg(entry.FromPrincipal),
		principalArg(entry.ToPrincipal),
		entry.Location,
		entry.Notes,
		entry.Timestamp,
		entry.PrevHash,
		entry.EntryHash,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert custody entry: %w", err)
	}
	return entry, nil
}

// ListNewestFirst returns the item's entries ordered newest first.
func (s *PostgresStore) ListNewestFirst(ctx context.Context, evidenceID domain.EvidenceID) ([]Entry, error) {
	return s.list(ctx, evidenceID, "DESC")
}

// ListOldestFirst returns the item's entries in chain order.
func (s *PostgresStore) ListOldestFirst(ctx context.Context, evidenceID domain.EvidenceID) ([]Entry, error) {
	return s.list(ctx, evidenceID, "ASC")
}

func (s *PostgresStore) list(ctx context.Context, evidenceID domain.EvidenceID, direction string) ([]Entry, error) {
	query := fmt.Sprintf(`
		SELECT id, evidence_id, action, from_principal, to_principal,
		       location, notes, timestamp, prev_hash, entry_hash
		FROM custody_entries
		WHERE evidence_id = $1
		ORDER BY timestamp %s, id %s
	`, direction, direction)
	rows, err := s.querier(ctx).QueryContext(ctx, query, uuid.UUID(evidenceID))
	if err != nil {
		return nil, fmt.Errorf("query custody entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate custody entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntryRow(row *sql.Row) (Entry, error) {
	return scanEntryFrom(row)
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	entry, err := scanEntryFrom(rows)
	if err != nil {
		return Entry{}, fmt.Errorf("scan custody entry: %w", err)
	}
	return entry, nil
}

func scanEntryFrom(scanner rowScanner) (Entry, error) {
	var (
		entry      Entry
		id         uuid.UUID
		evidenceID uuid.UUID
		action     string
		from       *uuid.UUID
		to         *uuid.UUID
	)
	err := scanner.Scan(&id, &evidenceID, &action, &from, &to,
		&entry.Location, &entry.Notes, &entry.Timestamp, &entry.PrevHash, &entry.EntryHash)
	if err != nil {
		return Entry{}, err
	}
	entry.ID = domain.CustodyEntryID(id)
	entry.EvidenceID = domain.EvidenceID(evidenceID)
	entry.Action = domain.CustodyAction(action)
	if from != nil {
		f := domain.PrincipalID(*from)
		entry.FromPrincipal = &f
	}
	if to != nil {
		t := domain.PrincipalID(*to)
		entry.ToPrincipal = &t
	}
	return entry, nil
}

func principalArg(p *domain.PrincipalID) any {
	if p == nil {
		return nil
	}
	return uuid.UUID(*p)
}
