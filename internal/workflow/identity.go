package workflow

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"veranda/internal/audit"
	identity "veranda/internal/identity/models"
	listing "veranda/internal/listing/models"
	"veranda/internal/notify"
	"veranda/internal/workflow/uow"
	id "veranda/pkg/domain"
)

// IdentitySubmission is the owner-provided KYC payload.
type IdentitySubmission struct {
	IDType        identity.IDType
	IDNumber      string
	IDDocumentRef string
	IDExpiry      *time.Time
}

// SubmitIdentity records an owner's identity documents and moves the record
// into pending_review. First submission creates the record; resubmission
// after rejection overwrites it.
func (s *Service) SubmitIdentity(ctx context.Context, userID id.UserID, submission IdentitySubmission) (*identity.OwnerIdentity, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.SubmitIdentity")
	defer span.End()

	var result *identity.OwnerIdentity
	ctx = uow.WithKey(ctx, userID.String())
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		owner, err := s.findOrCreateIdentity(ctx, userID)
		if err != nil {
			return err
		}
		if err := owner.CanSubmit(submission.IDType, submission.IDNumber, submission.IDDocumentRef); err != nil {
			return err
		}
		// Audit first: with the in-memory stores there is no rollback, so a
		// failed append must abort before anything mutates.
		if err := s.emit(ctx, audit.Entry{
			Subject: audit.OwnerSubject(userID),
			Actor:   userID,
			Action:  audit.ActionIdentitySubmitted,
			Payload: map[string]any{"id_type": string(submission.IDType)},
		}); err != nil {
			return err
		}
		owner.ApplySubmit(submission.IDType, submission.IDNumber, submission.IDDocumentRef, submission.IDExpiry, s.nowFunc())
		if err := s.stores.Identities.Save(ctx, owner); err != nil {
			return storeErr(err, "owner identity not found")
		}
		result = owner
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DecideIdentity records a staff verdict on a pending identity. Approval
// triggers a re-check of the owner's listings parked on identity.
func (s *Service) DecideIdentity(ctx context.Context, userID id.UserID, outcome identity.DecisionOutcome, reviewer id.UserID, notes string) (*identity.OwnerIdentity, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.DecideIdentity")
	defer span.End()

	var result *identity.OwnerIdentity
	ctx = uow.WithKey(ctx, userID.String())
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		owner, err := s.stores.Identities.FindByUser(ctx, userID)
		if err != nil {
			return storeErr(err, "owner identity not found")
		}
		if err := owner.CanDecide(outcome, reviewer); err != nil {
			return err
		}
		action := audit.ActionIdentityApproved
		if outcome == identity.DecisionRejected {
			action = audit.ActionIdentityRejected
		}
		if err := s.emit(ctx, audit.Entry{
			Subject: audit.OwnerSubject(userID),
			Actor:   reviewer,
			Action:  action,
			Payload: map[string]any{"notes": notes},
		}); err != nil {
			return err
		}
		owner.ApplyDecision(outcome, reviewer, notes, s.nowFunc())
		if err := s.stores.Identities.Save(ctx, owner); err != nil {
			return storeErr(err, "owner identity not found")
		}
		result = owner
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		if outcome == identity.DecisionApproved {
			s.metrics.IdentitiesApproved.Inc()
		} else {
			s.metrics.IdentitiesRejected.Inc()
		}
	}

	tag := notify.TagIdentityApproved
	if outcome == identity.DecisionRejected {
		tag = notify.TagIdentityRejected
	}
	s.notifyAsync(ctx, notify.Event{
		Tag:       tag,
		Recipient: uuidOf(userID),
		Payload:   map[string]any{"notes": notes},
	})

	if outcome == identity.DecisionApproved {
		s.recheckOwnerListings(ctx, userID, reviewer)
	}
	return result, nil
}

// ReopenIdentity pulls an approved identity back into review. Staff-only; the
// owner's verified listings are left alone until the re-review decides.
func (s *Service) ReopenIdentity(ctx context.Context, userID id.UserID, actor id.UserID) (*identity.OwnerIdentity, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.ReopenIdentity")
	defer span.End()

	var result *identity.OwnerIdentity
	ctx = uow.WithKey(ctx, userID.String())
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		owner, err := s.stores.Identities.FindByUser(ctx, userID)
		if err != nil {
			return storeErr(err, "owner identity not found")
		}
		if err := owner.CanReopen(actor); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.Entry{
			Subject: audit.OwnerSubject(userID),
			Actor:   actor,
			Action:  audit.ActionIdentityReopened,
		}); err != nil {
			return err
		}
		owner.ApplyReopen(s.nowFunc())
		if err := s.stores.Identities.Save(ctx, owner); err != nil {
			return storeErr(err, "owner identity not found")
		}
		result = owner
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkEmailVerified records email verification and re-checks gated listings.
func (s *Service) MarkEmailVerified(ctx context.Context, userID id.UserID) error {
	return s.markContactVerified(ctx, userID, audit.ActionEmailVerified, func(owner *identity.OwnerIdentity) {
		owner.MarkEmailVerified(s.nowFunc())
	})
}

// MarkPhoneVerified records phone verification and re-checks gated listings.
func (s *Service) MarkPhoneVerified(ctx context.Context, userID id.UserID) error {
	return s.markContactVerified(ctx, userID, audit.ActionPhoneVerified, func(owner *identity.OwnerIdentity) {
		owner.MarkPhoneVerified(s.nowFunc())
	})
}

func (s *Service) markContactVerified(ctx context.Context, userID id.UserID, action audit.Action, mark func(*identity.OwnerIdentity)) error {
	ctx, span := s.tracer.Start(ctx, "workflow.MarkContactVerified")
	defer span.End()

	ctx = uow.WithKey(ctx, userID.String())
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		owner, err := s.findOrCreateIdentity(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.emit(ctx, audit.Entry{
			Subject: audit.OwnerSubject(userID),
			Actor:   userID,
			Action:  action,
		}); err != nil {
			return err
		}
		mark(owner)
		if err := s.stores.Identities.Save(ctx, owner); err != nil {
			return storeErr(err, "owner identity not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recheckOwnerListings(ctx, userID, userID)
	return nil
}

// GetIdentity returns the owner's identity record.
func (s *Service) GetIdentity(ctx context.Context, userID id.UserID) (*identity.OwnerIdentity, error) {
	owner, err := s.stores.Identities.FindByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "owner identity not found")
	}
	return owner, nil
}

// findOrCreateIdentity lazily creates the identity record on first touch, so
// contact verification and KYC submission can arrive in any order.
func (s *Service) findOrCreateIdentity(ctx context.Context, userID id.UserID) (*identity.OwnerIdentity, error) {
	owner, err := s.stores.Identities.FindByUser(ctx, userID)
	if err == nil {
		return owner, nil
	}
	created, newErr := identity.NewOwnerIdentity(userID, s.nowFunc())
	if newErr != nil {
		return nil, newErr
	}
	return created, nil
}

// recheckOwnerListings re-evaluates the owner's gated listings after their
// gating data improved, promoting any whose prerequisites are now fully
// satisfied. Each promotion is its own unit of work; a failure on one listing
// does not block the others.
func (s *Service) recheckOwnerListings(ctx context.Context, ownerID id.UserID, actor id.UserID) {
	var gated []listing.Listing
	for _, status := range []listing.Status{listing.StatusPendingIdentity, listing.StatusPendingDocuments} {
		batch, err := s.stores.Listings.ListByOwnerAndStatus(ctx, ownerID, status)
		if err != nil {
			s.logger.ErrorContext(ctx, "gating re-check listing lookup failed",
				"owner_id", ownerID.String(),
				"status", string(status),
				"error", err,
			)
			return
		}
		gated = append(gated, batch...)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for _, candidate := range gated {
		listingID := candidate.ID
		group.Go(func() error {
			if err := s.promoteIfSatisfied(groupCtx, listingID, actor); err != nil {
				s.logger.WarnContext(groupCtx, "gating re-check promotion failed",
					"listing_id", listingID.String(),
					"error", err,
				)
			}
			return nil
		})
	}
	_ = group.Wait()
}
