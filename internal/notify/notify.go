// Package notify delivers best-effort notifications about workflow outcomes.
// Delivery is fire-and-forget: a failed or dropped notification never fails
// or rolls back the transition that produced it.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Tag identifies the notification template to render downstream.
type Tag string

const (
	TagIdentityApproved  Tag = "identity.approved"
	TagIdentityRejected  Tag = "identity.rejected"
	TagListingPromoted   Tag = "listing.promoted"
	TagListingVerified   Tag = "listing.verified"
	TagListingRejected   Tag = "listing.rejected"
	TagDocumentReturned  Tag = "document.returned"
	TagReviewQueueOpened Tag = "review.queue_opened"
)

// Event is one notification to an account.
type Event struct {
	Tag       Tag
	Recipient uuid.UUID
	Payload   map[string]any
}

// Notifier delivers events. Implementations must not block the caller for
// longer than a channel send.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// LogNotifier writes notifications to the structured log. Stands in for real
// channels (push, email) in development and tests.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) {
	n.logger.InfoContext(ctx, "notification",
		"tag", string(event.Tag),
		"recipient", event.Recipient.String(),
	)
}
