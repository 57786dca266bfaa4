package notify

import (
	"context"
	"log/slog"
)

// Dispatcher decouples notification delivery from the request path. Events
// are queued on a bounded channel and delivered by a background worker; when
// the queue is full the event is dropped and logged, never blocked on.
type Dispatcher struct {
	sink   Notifier
	inbox  chan Event
	logger *slog.Logger
}

func NewDispatcher(sink Notifier, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		sink:   sink,
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Notify queues the event. Dropped events are a logged operational signal,
// not an error the caller sees.
func (d *Dispatcher) Notify(ctx context.Context, event Event) {
	select {
	case d.inbox <- event:
	default:
		d.logger.WarnContext(ctx, "notification dropped, queue full",
			"tag", string(event.Tag),
			"recipient", event.Recipient.String(),
		)
	}
}

// Run delivers queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-d.inbox:
			d.sink.Notify(ctx, event)
		}
	}
}
