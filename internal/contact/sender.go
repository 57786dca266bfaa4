package contact

import (
	"context"
	"log/slog"

	id "veranda/pkg/domain"
)

// Sender delivers verification secrets out of band. Implementations talk to a
// mail provider and an SMS gateway; secrets must never be logged.
type Sender interface {
	SendEmailToken(ctx context.Context, userID id.UserID, email, token string) error
	SendOTP(ctx context.Context, userID id.UserID, code string) error
}

// LogSender records that a delivery happened without revealing the secret.
// It stands in for real providers in development and tests.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) SendEmailToken(ctx context.Context, userID id.UserID, email, _ string) error {
	s.Logger.InfoContext(ctx, "email verification token issued",
		"user_id", userID.String(),
		"email", email,
	)
	return nil
}

func (s LogSender) SendOTP(ctx context.Context, userID id.UserID, _ string) error {
	s.Logger.InfoContext(ctx, "phone verification code issued",
		"user_id", userID.String(),
	)
	return nil
}
