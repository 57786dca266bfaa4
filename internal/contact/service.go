// Package contact verifies owner contact channels. Email goes through a
// signed single-use link token, phone through a short-lived OTP. Confirmed
// verifications are recorded on the owner identity by the workflow service.
package contact

import (
	"context"
	"log/slog"

	"veranda/internal/audit"
	id "veranda/pkg/domain"
)

// IdentityMarker is the slice of the workflow service this package needs.
type IdentityMarker interface {
	MarkEmailVerified(ctx context.Context, userID id.UserID) error
	MarkPhoneVerified(ctx context.Context, userID id.UserID) error
}

// Service orchestrates contact verification end to end.
type Service struct {
	tokens   *EmailTokenService
	otps     *OTPService
	workflow IdentityMarker

	logger *slog.Logger
	audit  *audit.Publisher
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger for operational events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher records request events in the audit trail.
func WithAuditPublisher(publisher *audit.Publisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func NewService(tokens *EmailTokenService, otps *OTPService, workflow IdentityMarker, opts ...Option) *Service {
	s := &Service{
		tokens:   tokens,
		otps:     otps,
		workflow: workflow,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestEmailVerification issues a verification token for the address. The
// caller hands the token to the mail sender; it never appears in logs.
func (s *Service) RequestEmailVerification(ctx context.Context, userID id.UserID, email string) (string, error) {
	token, err := s.tokens.Issue(userID, email)
	if err != nil {
		return "", err
	}
	s.logAudit(ctx, audit.Entry{
		Subject: audit.OwnerSubject(userID),
		Actor:   userID,
		Action:  audit.ActionEmailVerificationRequested,
	})
	return token, nil
}

// ConfirmEmail burns the token and marks the owner's email verified.
func (s *Service) ConfirmEmail(ctx context.Context, tokenString string) error {
	userID, email, err := s.tokens.Confirm(ctx, tokenString)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email verified", "user_id", userID.String(), "email", email)
	return s.workflow.MarkEmailVerified(ctx, userID)
}

// RequestPhoneOTP issues a fresh code for the user's phone. The caller hands
// the code to the SMS gateway.
func (s *Service) RequestPhoneOTP(ctx context.Context, userID id.UserID) (string, error) {
	code, err := s.otps.Issue(ctx, userID)
	if err != nil {
		return "", err
	}
	s.logAudit(ctx, audit.Entry{
		Subject: audit.OwnerSubject(userID),
		Actor:   userID,
		Action:  audit.ActionPhoneOTPRequested,
	})
	return code, nil
}

// ConfirmPhoneOTP checks the code and marks the owner's phone verified.
func (s *Service) ConfirmPhoneOTP(ctx context.Context, userID id.UserID, code string) error {
	if err := s.otps.Verify(ctx, userID, code); err != nil {
		return err
	}
	return s.workflow.MarkPhoneVerified(ctx, userID)
}

// Request events are observability, not gating state; losing one is
// acceptable, unlike the transition audits the workflow writes.
func (s *Service) logAudit(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", string(entry.Action),
			"error", err,
		)
	}
}
