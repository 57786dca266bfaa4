// Package outbox publishes audit entries from the outbox table to Kafka.
// Kafka is the downstream source of truth for audit events; the outbox table
// guarantees at-least-once delivery across process restarts.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Relay drains unpublished outbox rows into a Kafka topic. Rows are claimed
// with FOR UPDATE SKIP LOCKED so multiple relays can run concurrently without
// double-publishing within a single poll.
type Relay struct {
	db     *sql.DB
	client *kgo.Client
	topic  string
	logger *slog.Logger

	batchSize    int
	pollInterval time.Duration
}

// Option configures the Relay.
type Option func(*Relay)

// WithLogger sets a logger for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithBatchSize caps how many rows one poll claims.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithPollInterval sets the idle sleep between polls.
func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// New connects a Kafka producer for the given brokers and topic.
func New(db *sql.DB, brokers []string, topic string, opts ...Option) (*Relay, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	r := &Relay{
		db:           db,
		client:       client,
		topic:        topic,
		logger:       slog.Default(),
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (r *Relay) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(r.client)
	resp, err := adm.CreateTopic(ctx, partitions, replication, nil, r.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", r.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", r.topic, resp.Err)
	}
	return nil
}

// Run polls the outbox until ctx is cancelled. Each poll claims a batch,
// produces every row, and marks the batch published in the same transaction
// as the claim.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drainOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id          uuid.UUID
	aggregateID uuid.UUID
	eventType   string
	payload     []byte
}

func (r *Relay) drainOnce(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const claim = `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.QueryContext(ctx, claim, r.batchSize)
	if err != nil {
		return fmt.Errorf("claim outbox rows: %w", err)
	}

	var batch []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.aggregateID, &row.eventType, &row.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate outbox rows: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	records := make([]*kgo.Record, len(batch))
	for i, row := range batch {
		// Key by aggregate so one subject's entries stay ordered per partition.
		records[i] = &kgo.Record{
			Topic: r.topic,
			Key:   []byte(row.aggregateID.String()),
			Value: row.payload,
		}
	}
	if err := r.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}

	ids := make([]any, len(batch))
	placeholders := ""
	for i, row := range batch {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += fmt.Sprintf("$%d", i+2)
		ids[i] = row.id
	}
	mark := fmt.Sprintf("UPDATE outbox SET published_at = $1 WHERE id IN (%s)", placeholders)
	args := append([]any{time.Now()}, ids...)
	if _, err := tx.ExecContext(ctx, mark, args...); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox tx: %w", err)
	}
	return nil
}

// Close flushes and shuts down the Kafka client.
func (r *Relay) Close() {
	r.client.Close()
}
