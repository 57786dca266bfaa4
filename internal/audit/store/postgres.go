package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"veranda/internal/audit"
	id "veranda/pkg/domain"
	txcontext "veranda/pkg/platform/tx"
)

// Postgres persists audit entries and mirrors each one into the outbox table
// so the Kafka relay can publish it. Both inserts ride the caller's
// transaction: if the workflow transaction rolls back, neither the entry nor
// the outbox row survives.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type entryRow struct {
	SubjectKind string         `json:"subject_kind"`
	SubjectID   string         `json:"subject_id"`
	ActorID     string         `json:"actor_id"`
	Action      string         `json:"action"`
	Payload     map[string]any `json:"payload,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

func (s *Postgres) Append(ctx context.Context, entry audit.Entry) error {
	exec := txcontext.Resolve(ctx, s.db)

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	const insertEntry = `
		INSERT INTO audit_entries (id, subject_kind, subject_id, actor_id, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := exec.ExecContext(ctx, insertEntry,
		entry.ID,
		string(entry.Subject.Kind),
		entry.Subject.ID,
		uuid.UUID(entry.Actor),
		string(entry.Action),
		payload,
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	outboxPayload, err := json.Marshal(entryRow{
		SubjectKind: string(entry.Subject.Kind),
		SubjectID:   entry.Subject.ID.String(),
		ActorID:     entry.Actor.String(),
		Action:      string(entry.Action),
		Payload:     entry.Payload,
		CreatedAt:   entry.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	const insertOutbox = `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := exec.ExecContext(ctx, insertOutbox,
		uuid.New(),
		string(entry.Subject.Kind),
		entry.Subject.ID,
		string(entry.Action),
		outboxPayload,
		time.Now(),
	); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *Postgres) ListBySubject(ctx context.Context, subject audit.Subject) ([]audit.Entry, error) {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		SELECT id, subject_kind, subject_id, actor_id, action, payload, created_at
		FROM audit_entries
		WHERE subject_kind = $1 AND subject_id = $2
		ORDER BY created_at ASC
	`
	rows, err := exec.QueryContext(ctx, query, string(subject.Kind), subject.ID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries by subject: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Postgres) ListBetween(ctx context.Context, from, to time.Time) ([]audit.Entry, error) {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		SELECT id, subject_kind, subject_id, actor_id, action, payload, created_at
		FROM audit_entries
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC
	`
	rows, err := exec.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list audit entries by range: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var out []audit.Entry
	for rows.Next() {
		var (
			entry       audit.Entry
			subjectKind string
			action      string
			actorID     uuid.UUID
			payload     []byte
		)
		if err := rows.Scan(&entry.ID, &subjectKind, &entry.Subject.ID, &actorID, &action, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Subject.Kind = audit.SubjectKind(subjectKind)
		entry.Action = audit.Action(action)
		entry.Actor = id.UserID(actorID)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal audit payload: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
