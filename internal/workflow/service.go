// Package workflow orchestrates the verification lifecycle: owner identities,
// listing submissions, review decisions and the audit trail they leave
// behind. State machines live with their models; this package sequences them,
// keeps every transition atomic with its audit entry, and routes submissions
// through the prerequisite gate.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"veranda/internal/audit"
	identity "veranda/internal/identity/models"
	listing "veranda/internal/listing/models"
	"veranda/internal/notify"
	"veranda/internal/platform/metrics"
	verification "veranda/internal/verification/models"
	"veranda/internal/workflow/uow"
	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
	"veranda/pkg/platform/sentinel"
)

// IdentityStore persists owner identities.
type IdentityStore interface {
	Save(ctx context.Context, identity *identity.OwnerIdentity) error
	FindByUser(ctx context.Context, userID id.UserID) (*identity.OwnerIdentity, error)
}

// ListingStore persists listings.
type ListingStore interface {
	Create(ctx context.Context, listing *listing.Listing) error
	Update(ctx context.Context, listing *listing.Listing) error
	FindByID(ctx context.Context, listingID id.ListingID) (*listing.Listing, error)
	ListByOwnerAndStatus(ctx context.Context, ownerID id.UserID, status listing.Status) ([]listing.Listing, error)
	ListByStatus(ctx context.Context, status listing.Status) ([]listing.Listing, error)
}

// PhotoStore persists listing photos and enforces the single-primary rule.
type PhotoStore interface {
	Add(ctx context.Context, photo *listing.Photo) error
	SetPrimary(ctx context.Context, listingID id.ListingID, photoID id.PhotoID) error
	CountByListing(ctx context.Context, listingID id.ListingID) (total int, primary int, err error)
	ListByListing(ctx context.Context, listingID id.ListingID) ([]listing.Photo, error)
}

// DocumentStore persists listing documents.
type DocumentStore interface {
	Add(ctx context.Context, document *listing.Document) error
	Update(ctx context.Context, document *listing.Document) error
	FindByID(ctx context.Context, documentID id.DocumentID) (*listing.Document, error)
	CountByListing(ctx context.Context, listingID id.ListingID) (int, error)
	ListByListing(ctx context.Context, listingID id.ListingID) ([]listing.Document, error)
}

// RequestStore persists verification requests. Open returns
// sentinel.ErrConflict when the listing already has an active cycle.
type RequestStore interface {
	Open(ctx context.Context, request *verification.VerificationRequest) error
	Update(ctx context.Context, request *verification.VerificationRequest) error
	FindOpenByListing(ctx context.Context, listingID id.ListingID) (*verification.VerificationRequest, error)
	ListByListing(ctx context.Context, listingID id.ListingID) ([]verification.VerificationRequest, error)
}

// AuditSink records transition entries. A failed append fails the transition.
type AuditSink interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// Stores bundles the persistence collaborators.
type Stores struct {
	Identities IdentityStore
	Listings   ListingStore
	Photos     PhotoStore
	Documents  DocumentStore
	Requests   RequestStore
}

// Service is the workflow orchestrator.
type Service struct {
	stores Stores
	uow    uow.UnitOfWork
	audit  AuditSink

	notifier notify.Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	nowFunc  func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger for operational events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithNotifier enables fire-and-forget outcome notifications.
func WithNotifier(notifier notify.Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source. Tests use it for deterministic
// timestamps.
func WithClock(nowFunc func() time.Time) Option {
	return func(s *Service) {
		s.nowFunc = nowFunc
	}
}

func NewService(stores Stores, unit uow.UnitOfWork, auditSink AuditSink, opts ...Option) *Service {
	s := &Service{
		stores:  stores,
		uow:     unit,
		audit:   auditSink,
		logger:  slog.Default(),
		tracer:  otel.Tracer("veranda/workflow"),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// emit appends the audit entry inside the current unit of work. Audit is part
// of the transition contract: if it cannot be recorded, the transition fails.
func (s *Service) emit(ctx context.Context, entry audit.Entry) error {
	if err := s.audit.Emit(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "record audit entry")
	}
	return nil
}

// notifyAsync delivers after the transaction committed. Failures are logged,
// never surfaced.
func (s *Service) notifyAsync(ctx context.Context, event notify.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, event)
}

// storeErr maps infrastructure sentinels onto the service error taxonomy.
func storeErr(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "conflicting write")
	default:
		return dErrors.Wrap(err, dErrors.CodePersistence, "storage failure")
	}
}
