package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"veranda/internal/audit"
	listing "veranda/internal/listing/models"
	"veranda/internal/notify"
	"veranda/internal/verification/gate"
	verification "veranda/internal/verification/models"
	"veranda/internal/workflow/uow"
	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
	"veranda/pkg/platform/sentinel"
)

// ListingDraft is the owner-provided content for a new listing.
type ListingDraft struct {
	Title        string
	Description  string
	PropertyType listing.PropertyType
	ListingType  listing.ListingType
	City         string
	PriceMinor   int64
	Currency     string
}

// CreateListing creates a draft owned by the caller.
func (s *Service) CreateListing(ctx context.Context, ownerID id.UserID, draft ListingDraft) (*listing.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.CreateListing")
	defer span.End()

	created, err := listing.NewListing(id.NewListingID(), ownerID, draft.Title, s.nowFunc())
	if err != nil {
		return nil, err
	}
	created.Description = draft.Description
	created.PropertyType = draft.PropertyType
	created.ListingType = draft.ListingType
	created.City = draft.City
	created.PriceMinor = draft.PriceMinor
	if draft.Currency != "" {
		created.Currency = draft.Currency
	}

	if err := s.stores.Listings.Create(ctx, created); err != nil {
		return nil, storeErr(err, "listing not found")
	}
	return created, nil
}

// SubmitListing takes a draft into the verification pipeline. The gate
// decides whether the submission is accepted at all and, when it is, which
// state receives it: in_review when everything is satisfied, pending_identity
// when only the owner's identity is lagging, pending_documents when documents
// alone are missing. Submissions with no photos, or missing both identity and
// content, are refused outright.
func (s *Service) SubmitListing(ctx context.Context, listingID id.ListingID, actor id.UserID) (*listing.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.SubmitListing")
	defer span.End()

	var (
		result    *listing.Listing
		requestID id.RequestID
	)
	ctx = uow.WithKey(ctx, listingID.String())
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		l, err := s.stores.Listings.FindByID(ctx, listingID)
		if err != nil {
			return storeErr(err, "listing not found")
		}
		if l.OwnerID != actor {
			return dErrors.New(dErrors.CodeForbidden, "only the owner may submit a listing")
		}
		// A listing that already left draft with an open cycle reports the
		// in-flight review, not a generic transition error.
		if l.Status != listing.StatusDraft {
			if _, err := s.stores.Requests.FindOpenByListing(ctx, l.ID); err == nil {
				return dErrors.New(dErrors.CodeReviewInProgress, "listing already has an active verification request")
			}
		}

		evaluation, err := s.evaluate(ctx, l)
		if err != nil {
			return err
		}
		if err := s.refuseIfUnsubmittable(evaluation); err != nil {
			return err
		}

		target := gate.Route(evaluation)
		if err := l.CanSubmitTo(target); err != nil {
			return err
		}

		request, err := verification.NewVerificationRequest(id.NewRequestID(), l.ID, actor, s.nowFunc())
		if err != nil {
			return err
		}
		if err := s.emit(ctx, audit.Entry{
			Subject: audit.ListingSubject(l.ID),
			Actor:   actor,
			Action:  audit.ActionListingSubmitted,
			Payload: map[string]any{
				"target":     string(target),
				"request_id": request.ID.String(),
				"unmet":      evaluation.Tags(),
			},
		}); err != nil {
			return err
		}
		if err := s.stores.Requests.Open(ctx, request); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeReviewInProgress, "listing already has an active verification request")
			}
			return storeErr(err, "listing not found")
		}

		l.ApplySubmit(target, s.nowFunc())
		if err := s.stores.Listings.Update(ctx, l); err != nil {
			return storeErr(err, "listing not found")
		}
		result = l
		requestID = request.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ListingsSubmitted.Inc()
	}
	s.logger.InfoContext(ctx, "listing submitted",
		"listing_id", listingID.String(),
		"request_id", requestID.String(),
		"status", string(result.Status),
	)
	return result, nil
}

// refuseIfUnsubmittable applies the acceptance policy. A submission must
// carry at least a valid photo set, and may lag on at most one of the two
// gating categories (identity, content); lagging on both is refused. The
// refusal reports the content-side gaps for the owner to fix.
func (s *Service) refuseIfUnsubmittable(evaluation gate.Result) error {
	if evaluation.Satisfied {
		return nil
	}
	var identityTags, contentTags []gate.ConditionTag
	photoGap := false
	for _, tag := range evaluation.Unmet {
		switch tag {
		case gate.IdentityUnverified, gate.ContactUnverified:
			identityTags = append(identityTags, tag)
		case gate.PhotoRequired, gate.PrimaryPhotoMissing:
			photoGap = true
			contentTags = append(contentTags, tag)
		default:
			contentTags = append(contentTags, tag)
		}
	}
	if !photoGap && (len(identityTags) == 0 || len(contentTags) == 0) {
		return nil
	}

	unmet := make([]string, len(contentTags))
	for i, tag := range contentTags {
		unmet[i] = string(tag)
	}
	if s.metrics != nil {
		for _, tag := range unmet {
			s.metrics.PrerequisiteFailures.WithLabelValues(tag).Inc()
		}
	}
	return dErrors.New(dErrors.CodePrerequisitesNotMet, "listing does not meet submission prerequisites").
		Add("unmet", unmet)
}

// evaluate runs the prerequisite gate against current facts.
func (s *Service) evaluate(ctx context.Context, l *listing.Listing) (gate.Result, error) {
	owner, err := s.findOrCreateIdentity(ctx, l.OwnerID)
	if err != nil {
		return gate.Result{}, err
	}
	total, primary, err := s.stores.Photos.CountByListing(ctx, l.ID)
	if err != nil {
		return gate.Result{}, storeErr(err, "listing not found")
	}
	documents, err := s.stores.Documents.CountByListing(ctx, l.ID)
	if err != nil {
		return gate.Result{}, storeErr(err, "listing not found")
	}
	return gate.Evaluate(owner, gate.Facts{
		PhotoCount:    total,
		PrimaryPhotos: primary,
		DocumentCount: documents,
	}), nil
}

// Prerequisites reports the listing's current gate evaluation without
// changing anything. Owners poll it to see what still blocks submission.
func (s *Service) Prerequisites(ctx context.Context, listingID id.ListingID) (gate.Result, error) {
	l, err := s.stores.Listings.FindByID(ctx, listingID)
	if err != nil {
		return gate.Result{}, storeErr(err, "listing not found")
	}
	return s.evaluate(ctx, l)
}

// ClaimReview moves the listing's open request to under_review, marking that
// a reviewer picked it up off the queue.
func (s *Service) ClaimReview(ctx context.Context, listingID id.ListingID, reviewer id.UserID) error {
	ctx, span := s.tracer.Start(ctx, "workflow.ClaimReview")
	defer span.End()

	if reviewer.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "claim requires a reviewer")
	}
	ctx = uow.WithKey(ctx, listingID.String())
	return s.uow.RunInTx(ctx, func(ctx context.Context) error {
		request, err := s.stores.Requests.FindOpenByListing(ctx, listingID)
		if err != nil {
			return storeErr(err, "no active verification request for listing")
		}
		if request.State == verification.StateUnderReview {
			return nil
		}
		request.State = verification.StateUnderReview
		request.Reviewer = &reviewer
		if err := s.stores.Requests.Update(ctx, request); err != nil {
			return storeErr(err, "no active verification request for listing")
		}
		return nil
	})
}

// DecideListing records the staff verdict on a listing under review. Approval
// publishes it; rejection requires a non-empty reason, checked before any
// state is touched. Deciding a listing that is no longer in review is a stale
// decision.
func (s *Service) DecideListing(ctx context.Context, listingID id.ListingID, reviewer id.UserID, approve bool, reason string) (*listing.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.DecideListing")
	defer span.End()

	if reviewer.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "decision requires a reviewer")
	}

	var result *listing.Listing
	ctx = uow.WithKey(ctx, listingID.String())
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		l, err := s.stores.Listings.FindByID(ctx, listingID)
		if err != nil {
			return storeErr(err, "listing not found")
		}
		if l.Status != listing.StatusInReview {
			return dErrors.New(dErrors.CodeStaleDecision, "listing is no longer in review").
				Add("status", string(l.Status))
		}

		outcome := verification.StateApproved
		action := audit.ActionListingApproved
		if approve {
			if err := l.CanApprove(); err != nil {
				return err
			}
		} else {
			if err := l.CanReject(reason); err != nil {
				return err
			}
			outcome = verification.StateRejected
			action = audit.ActionListingRejected
		}

		payload := map[string]any{}
		if !approve {
			payload["reason"] = strings.TrimSpace(reason)
		}
		if err := s.emit(ctx, audit.Entry{
			Subject: audit.ListingSubject(l.ID),
			Actor:   reviewer,
			Action:  action,
			Payload: payload,
		}); err != nil {
			return err
		}

		if approve {
			l.ApplyApprove(s.nowFunc())
		} else {
			l.ApplyReject(reason, s.nowFunc())
		}
		if err := s.closeOpenRequest(ctx, l.ID, outcome, reviewer, reason); err != nil {
			return err
		}
		if err := s.stores.Listings.Update(ctx, l); err != nil {
			return storeErr(err, "listing not found")
		}
		result = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		if approve {
			s.metrics.ListingsApproved.Inc()
		} else {
			s.metrics.ListingsRejected.Inc()
		}
	}
	tag := notify.TagListingVerified
	payload := map[string]any{"listing_id": listingID.String()}
	if !approve {
		tag = notify.TagListingRejected
		payload["reason"] = result.RejectionReason
	}
	s.notifyAsync(ctx, notify.Event{Tag: tag, Recipient: uuidOf(result.OwnerID), Payload: payload})
	return result, nil
}

// ArchiveListing withdraws a draft or verified listing. Any open verification
// request is cancelled alongside.
func (s *Service) ArchiveListing(ctx context.Context, listingID id.ListingID, actor id.UserID) (*listing.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.ArchiveListing")
	defer span.End()

	var result *listing.Listing
	ctx = uow.WithKey(ctx, listingID.String())
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		l, err := s.stores.Listings.FindByID(ctx, listingID)
		if err != nil {
			return storeErr(err, "listing not found")
		}
		if l.OwnerID != actor {
			return dErrors.New(dErrors.CodeForbidden, "only the owner may archive a listing")
		}
		if err := l.CanArchive(); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.Entry{
			Subject: audit.ListingSubject(l.ID),
			Actor:   actor,
			Action:  audit.ActionListingArchived,
		}); err != nil {
			return err
		}
		l.ApplyArchive(s.nowFunc())
		if err := s.cancelOpenRequest(ctx, l.ID); err != nil {
			return err
		}
		if err := s.stores.Listings.Update(ctx, l); err != nil {
			return storeErr(err, "listing not found")
		}
		result = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ListingsArchived.Inc()
	}
	return result, nil
}

// RestartRevision returns a rejected listing to draft so the owner can fix it
// and resubmit. Resubmission opens a fresh verification cycle.
func (s *Service) RestartRevision(ctx context.Context, listingID id.ListingID, actor id.UserID) (*listing.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.RestartRevision")
	defer span.End()

	var result *listing.Listing
	ctx = uow.WithKey(ctx, listingID.String())
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		l, err := s.stores.Listings.FindByID(ctx, listingID)
		if err != nil {
			return storeErr(err, "listing not found")
		}
		if l.OwnerID != actor {
			return dErrors.New(dErrors.CodeForbidden, "only the owner may restart a revision")
		}
		if err := l.CanRestartRevision(); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.Entry{
			Subject: audit.ListingSubject(l.ID),
			Actor:   actor,
			Action:  audit.ActionListingRevisionRestart,
		}); err != nil {
			return err
		}
		l.ApplyRestartRevision(s.nowFunc())
		if err := s.stores.Listings.Update(ctx, l); err != nil {
			return storeErr(err, "listing not found")
		}
		result = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// promoteIfSatisfied moves a gated listing into in_review once every
// prerequisite holds. No-op when the listing left its gated state or gaps
// remain.
func (s *Service) promoteIfSatisfied(ctx context.Context, listingID id.ListingID, actor id.UserID) error {
	var promoted *listing.Listing
	ctx = uow.WithKey(ctx, listingID.String())
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		l, err := s.stores.Listings.FindByID(ctx, listingID)
		if err != nil {
			return storeErr(err, "listing not found")
		}
		if !l.Status.IsGated() {
			return nil
		}
		evaluation, err := s.evaluate(ctx, l)
		if err != nil {
			return err
		}
		if !evaluation.Satisfied {
			return nil
		}
		if err := l.CanPromote(); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.Entry{
			Subject: audit.ListingSubject(l.ID),
			Actor:   actor,
			Action:  audit.ActionListingPromoted,
		}); err != nil {
			return err
		}
		l.ApplyPromote(s.nowFunc())
		if err := s.stores.Listings.Update(ctx, l); err != nil {
			return storeErr(err, "listing not found")
		}
		promoted = l
		return nil
	})
	if err != nil {
		return err
	}
	if promoted != nil {
		if s.metrics != nil {
			s.metrics.ListingsPromoted.Inc()
		}
		s.notifyAsync(ctx, notify.Event{
			Tag:       notify.TagListingPromoted,
			Recipient: uuidOf(promoted.OwnerID),
			Payload:   map[string]any{"listing_id": promoted.ID.String()},
		})
	}
	return nil
}

func (s *Service) closeOpenRequest(ctx context.Context, listingID id.ListingID, outcome verification.Outcome, reviewer id.UserID, notes string) error {
	request, err := s.stores.Requests.FindOpenByListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Ledger gap: decide anyway, the listing state machine is
			// authoritative.
			return nil
		}
		return storeErr(err, "no active verification request for listing")
	}
	if err := request.CanClose(outcome, reviewer); err != nil {
		return err
	}
	request.ApplyClose(outcome, reviewer, notes, s.nowFunc())
	if err := s.stores.Requests.Update(ctx, request); err != nil {
		return storeErr(err, "no active verification request for listing")
	}
	return nil
}

func (s *Service) cancelOpenRequest(ctx context.Context, listingID id.ListingID) error {
	request, err := s.stores.Requests.FindOpenByListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return storeErr(err, "no active verification request for listing")
	}
	if err := request.CanClose(verification.StateCancelled, id.UserID{}); err != nil {
		return err
	}
	request.ApplyClose(verification.StateCancelled, id.UserID{}, "listing archived", s.nowFunc())
	if err := s.stores.Requests.Update(ctx, request); err != nil {
		return storeErr(err, "no active verification request for listing")
	}
	return nil
}

// GetListing returns a listing by ID.
func (s *Service) GetListing(ctx context.Context, listingID id.ListingID) (*listing.Listing, error) {
	l, err := s.stores.Listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, storeErr(err, "listing not found")
	}
	return l, nil
}

// ReviewQueue returns listings waiting for a staff decision, oldest first.
func (s *Service) ReviewQueue(ctx context.Context) ([]listing.Listing, error) {
	queue, err := s.stores.Listings.ListByStatus(ctx, listing.StatusInReview)
	if err != nil {
		return nil, storeErr(err, "listing not found")
	}
	return queue, nil
}

// VerificationHistory returns every review cycle a listing went through.
func (s *Service) VerificationHistory(ctx context.Context, listingID id.ListingID) ([]verification.VerificationRequest, error) {
	history, err := s.stores.Requests.ListByListing(ctx, listingID)
	if err != nil {
		return nil, storeErr(err, "listing not found")
	}
	return history, nil
}

func uuidOf(userID id.UserID) uuid.UUID { return uuid.UUID(userID) }
