package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"custodia/pkg/domain"
	txcontext "custodia/pkg/platform/tx"
)

// PostgresStore persists audit entries in the audit_entries table and, in
// the same statement batch, stages a copy in audit_outbox for the export
// worker. Both inserts pick up the ambient transaction so the entry commits
// or rolls back with the mutation that produced it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore builds a store over the given handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if ambient, ok := txcontext.From(ctx); ok {
		return ambient
	}
	return s.db
}

// Append inserts the entry and its outbox copy. No ON CONFLICT clause: a
// duplicate id is a bug worth surfacing, not deduplicating.
func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	details, err := marshalDetails(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	const insertEntry = `
		INSERT INTO audit_entries (id, principal_id, action, resource_type, resource_id, details, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	execer := s.execer(ctx)
	_, err = execer.ExecContext(ctx, insertEntry,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.Principal),
		string(entry.Action),
		string(entry.ResourceType),
		entry.ResourceID,
		details,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	const insertOutbox = `
		INSERT INTO audit_outbox (id, entry_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	payload, err := json.Marshal(outboxPayload{
		ID:           entry.ID.String(),
		Principal:    entry.Principal.String(),
		Action:       string(entry.Action),
		ResourceType: string(entry.ResourceType),
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		Timestamp:    entry.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = execer.ExecContext(ctx, insertOutbox,
		uuid.New(),
		uuid.UUID(entry.ID),
		payload,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// outboxPayload is the JSON structure published to the export topic.
type outboxPayload struct {
	ID           string            `json:"id"`
	Principal    string            `json:"principal"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	Details      map[string]string `json:"details,omitempty"`
	Timestamp    string            `json:"timestamp"`
}

// ListRecent returns entries newest first.
func (s *PostgresStore) ListRecent(ctx context.Context, filters ListFilters, limit int) ([]Entry, error) {
	query, args := buildListQuery("", filters, limit)
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListRecentForPrincipal returns one principal's entries newest first.
func (s *PostgresStore) ListRecentForPrincipal(ctx context.Context, principal domain.PrincipalID, filters ListFilters, limit int) ([]Entry, error) {
	query, args := buildListQuery(principal.String(), filters, limit)
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func buildListQuery(principal string, filters ListFilters, limit int) (string, []any) {
	query := `
		SELECT id, principal_id, action, resource_type, resource_id, details, timestamp
		FROM audit_entries
		WHERE 1=1
	`
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if principal != "" {
		query += " AND principal_id = " + next(principal)
	}
	if filters.ResourceType != "" {
		query += " AND resource_type = " + next(string(filters.ResourceType))
	}
	if filters.Action != "" {
		query += " AND action = " + next(string(filters.Action))
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT " + next(limit)
	return query, args
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			id        uuid.UUID
			principal uuid.UUID
			action    string
			rt        string
			details   []byte
		)
		err := rows.Scan(&id, &principal, &action, &rt, &entry.ResourceID, &details, &entry.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ID = domain.AuditEntryID(id)
		entry.Principal = domain.PrincipalID(principal)
		entry.Action = domain.AuditAction(action)
		entry.ResourceType = domain.ResourceType(rt)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func marshalDetails(details map[string]string) ([]byte, error) {
	if len(details) == 0 {
		return nil, nil
	}
	return json.Marshal(details)
}
