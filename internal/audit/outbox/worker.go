// Package outbox drains committed audit entries to the Kafka export topic.
// The outbox row is written in the same transaction as the audit entry, so
// an entry is either exported eventually or was never committed — the
// pipeline cannot silently lose one.
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"custodia/internal/platform/metrics"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 100
)

// Worker polls audit_outbox and publishes unpublished rows.
type Worker struct {
	db       *sql.DB
	client   *kgo.Client
	topic    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	batch    int
}

// NewWorker builds an outbox worker.
func NewWorker(db *sql.DB, client *kgo.Client, topic string, logger *slog.Logger, m *metrics.Metrics) *Worker {
	return &Worker{
		db:       db,
		client:   client,
		topic:    topic,
		logger:   logger,
		metrics:  m,
		interval: defaultPollInterval,
		batch:    defaultBatchSize,
	}
}

// EnsureTopic creates the export topic if it does not exist yet.
func (w *Worker) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	admin := kadm.NewClient(w.client)
	_, err := admin.CreateTopic(ctx, partitions, replication, nil, w.topic)
	if err != nil && !strings.Contains(err.Error(), "TOPIC_ALREADY_EXISTS") {
		return fmt.Errorf("create audit export topic: %w", err)
	}
	return nil
}

// Run polls until the context is cancelled. Publish failures are retried on
// the next tick; rows stay unpublished until the broker acknowledged them.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.metrics.OutboxErrors.Inc()
				w.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id      uuid.UUID
	entryID uuid.UUID
	payload []byte
}

func (w *Worker) drainOnce(ctx context.Context) error {
	rows, err := w.fetchPending(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		record := &kgo.Record{
			Topic: w.topic,
			Key:   []byte(row.entryID.String()),
			Value: row.payload,
		}
		if err := w.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce outbox row %s: %w", row.id, err)
		}
		if err := w.markPublished(ctx, row.id); err != nil {
			return err
		}
		w.metrics.OutboxPublished.Inc()
	}
	return nil
}

func (w *Worker) fetchPending(ctx context.Context) ([]outboxRow, error) {
	const query = `
		SELECT id, entry_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := w.db.QueryContext(ctx, query, w.batch)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox rows: %w", err)
	}
	defer rows.Close()

	var pending []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.entryID, &row.payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		pending = append(pending, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return pending, nil
}

func (w *Worker) markPublished(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE audit_outbox SET published_at = $1 WHERE id = $2`
	if _, err := w.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark outbox row published: %w", err)
	}
	return nil
}
