package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists audit entries. Append-only; queries go by subject or by time
// range and nothing else.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListBySubject(ctx context.Context, subject Subject) ([]Entry, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Entry, error)
}

// Publisher captures structured audit entries. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. An Append
// failure propagates to the caller, which makes the triggering transition
// fail with it.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return p.store.Append(ctx, entry)
}

// ListBySubject returns the trail for one subject, oldest first.
func (p *Publisher) ListBySubject(ctx context.Context, subject Subject) ([]Entry, error) {
	return p.store.ListBySubject(ctx, subject)
}

// ListBetween returns all entries created in [from, to), oldest first.
func (p *Publisher) ListBetween(ctx context.Context, from, to time.Time) ([]Entry, error) {
	return p.store.ListBetween(ctx, from, to)
}
