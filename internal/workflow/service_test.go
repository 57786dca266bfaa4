package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"veranda/internal/audit"
	auditstore "veranda/internal/audit/store"
	identity "veranda/internal/identity/models"
	identitystore "veranda/internal/identity/store"
	listing "veranda/internal/listing/models"
	listingstore "veranda/internal/listing/store"
	verification "veranda/internal/verification/models"
	verificationstore "veranda/internal/verification/store"
	"veranda/internal/workflow/uow"
	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
	"veranda/pkg/platform/sentinel"
)

type WorkflowSuite struct {
	suite.Suite
	svc        *Service
	identities *identitystore.InMemory
	listings   *listingstore.InMemoryListings
	photos     *listingstore.InMemoryPhotos
	documents  *listingstore.InMemoryDocuments
	requests   *verificationstore.InMemory
	auditLog   *auditstore.InMemory
	ctx        context.Context
	reviewer   id.UserID
}

func (s *WorkflowSuite) SetupTest() {
	s.identities = identitystore.NewInMemory()
	s.listings = listingstore.NewInMemoryListings()
	s.photos = listingstore.NewInMemoryPhotos()
	s.documents = listingstore.NewInMemoryDocuments()
	s.requests = verificationstore.NewInMemory()
	s.auditLog = auditstore.NewInMemory()
	s.ctx = context.Background()
	s.reviewer = id.NewUserID()

	s.svc = NewService(Stores{
		Identities: s.identities,
		Listings:   s.listings,
		Photos:     s.photos,
		Documents:  s.documents,
		Requests:   s.requests,
	}, uow.NewSharded(), audit.NewPublisher(s.auditLog))
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

// approveOwner walks a user through KYC approval and email verification so
// their identity no longer gates submissions.
func (s *WorkflowSuite) approveOwner(userID id.UserID) {
	_, err := s.svc.SubmitIdentity(s.ctx, userID, IdentitySubmission{
		IDType:        identity.IDTypeNIN,
		IDNumber:      "12345678901",
		IDDocumentRef: "kyc/nin.jpg",
	})
	s.Require().NoError(err)
	_, err = s.svc.DecideIdentity(s.ctx, userID, identity.DecisionApproved, s.reviewer, "")
	s.Require().NoError(err)
	s.Require().NoError(s.svc.MarkEmailVerified(s.ctx, userID))
}

func (s *WorkflowSuite) newDraft(ownerID id.UserID) *listing.Listing {
	draft, err := s.svc.CreateListing(s.ctx, ownerID, ListingDraft{
		Title:        "3 Bedroom Flat, Lekki Phase 1",
		PropertyType: listing.PropertyApartment,
		ListingType:  listing.ListingRent,
		City:         "Lagos",
		PriceMinor:   450000000,
	})
	s.Require().NoError(err)
	return draft
}

func (s *WorkflowSuite) addPhoto(l *listing.Listing) {
	_, err := s.svc.AddPhoto(s.ctx, l.ID, l.OwnerID, "photos/front.jpg", "front view")
	s.Require().NoError(err)
}

func (s *WorkflowSuite) addDocument(l *listing.Listing) {
	_, err := s.svc.AddDocument(s.ctx, l.ID, l.OwnerID, listing.DocDeed, "docs/deed.pdf")
	s.Require().NoError(err)
}

func (s *WorkflowSuite) TestSubmitRouting() {
	s.Run("fully satisfied goes straight to in_review", func() {
		owner := id.NewUserID()
		s.approveOwner(owner)
		draft := s.newDraft(owner)
		s.addPhoto(draft)
		s.addDocument(draft)

		submitted, err := s.svc.SubmitListing(s.ctx, draft.ID, owner)
		s.Require().NoError(err)
		s.Equal(listing.StatusInReview, submitted.Status)
		s.NoError(submitted.CheckVisibilityInvariant())

		open, err := s.requests.FindOpenByListing(s.ctx, draft.ID)
		s.Require().NoError(err)
		s.Equal(verification.StatePending, open.State)
	})

	s.Run("identity-only gap parks in pending_identity", func() {
		owner := id.NewUserID()
		draft := s.newDraft(owner)
		s.addPhoto(draft)
		s.addDocument(draft)

		submitted, err := s.svc.SubmitListing(s.ctx, draft.ID, owner)
		s.Require().NoError(err)
		s.Equal(listing.StatusPendingIdentity, submitted.Status)
	})

	s.Run("document-only gap parks in pending_documents", func() {
		owner := id.NewUserID()
		s.approveOwner(owner)
		draft := s.newDraft(owner)
		s.addPhoto(draft)

		submitted, err := s.svc.SubmitListing(s.ctx, draft.ID, owner)
		s.Require().NoError(err)
		s.Equal(listing.StatusPendingDocuments, submitted.Status)
	})
}

func (s *WorkflowSuite) TestSubmitRefusals() {
	s.Run("no photos is refused outright", func() {
		owner := id.NewUserID()
		s.approveOwner(owner)
		draft := s.newDraft(owner)
		s.addDocument(draft)

		_, err := s.svc.SubmitListing(s.ctx, draft.ID, owner)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePrerequisitesNotMet))
		s.Contains(unmetOf(err), "photo_required")

		// Nothing moved.
		current, findErr := s.listings.FindByID(s.ctx, draft.ID)
		s.Require().NoError(findErr)
		s.Equal(listing.StatusDraft, current.Status)
		_, reqErr := s.requests.FindOpenByListing(s.ctx, draft.ID)
		s.Require().ErrorIs(reqErr, sentinel.ErrNotFound)
	})

	s.Run("gaps in both identity and content are refused with the content side reported", func() {
		owner := id.NewUserID()
		draft := s.newDraft(owner)
		s.addPhoto(draft)

		_, err := s.svc.SubmitListing(s.ctx, draft.ID, owner)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePrerequisitesNotMet))
		s.Equal([]string{"document_required"}, unmetOf(err))
	})

	s.Run("submission by a non-owner is forbidden", func() {
		owner := id.NewUserID()
		s.approveOwner(owner)
		draft := s.newDraft(owner)
		s.addPhoto(draft)
		s.addDocument(draft)

		_, err := s.svc.SubmitListing(s.ctx, draft.ID, id.NewUserID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *WorkflowSuite) TestConcurrentSubmitAdmitsExactlyOne() {
	owner := id.NewUserID()
	s.approveOwner(owner)
	draft := s.newDraft(owner)
	s.addPhoto(draft)
	s.addDocument(draft)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.SubmitListing(s.ctx, draft.ID, owner)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, inProgress := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case dErrors.HasCode(err, dErrors.CodeReviewInProgress):
			inProgress++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, succeeded)
	s.Equal(attempts-1, inProgress)
}

func (s *WorkflowSuite) TestVisibilityInvariantThroughLifecycle() {
	owner := id.NewUserID()
	s.approveOwner(owner)
	draft := s.newDraft(owner)
	s.addPhoto(draft)
	s.addDocument(draft)

	check := func(listingID id.ListingID) {
		current, err := s.listings.FindByID(s.ctx, listingID)
		s.Require().NoError(err)
		s.Require().NoError(current.CheckVisibilityInvariant())
	}

	check(draft.ID)

	_, err := s.svc.SubmitListing(s.ctx, draft.ID, owner)
	s.Require().NoError(err)
	check(draft.ID)

	approved, err := s.svc.DecideListing(s.ctx, draft.ID, s.reviewer, true, "")
	s.Require().NoError(err)
	s.Equal(listing.VisibilityPublic, approved.Visibility)
	check(draft.ID)

	_, err = s.svc.ArchiveListing(s.ctx, draft.ID, owner)
	s.Require().NoError(err)
	check(draft.ID)
}

func (s *WorkflowSuite) TestRoundTripAuditOrdering() {
	owner := id.NewUserID()
	s.Require().NoError(s.svc.MarkEmailVerified(s.ctx, owner))

	draft := s.newDraft(owner)
	s.addPhoto(draft)
	s.addDocument(draft)

	// Submit before KYC: parked on identity.
	submitted, err := s.svc.SubmitListing(s.ctx, draft.ID, owner)
	s.Require().NoError(err)
	s.Equal(listing.StatusPendingIdentity, submitted.Status)

	// KYC approval promotes the parked listing automatically.
	_, err = s.svc.SubmitIdentity(s.ctx, owner, IdentitySubmission{
		IDType:        identity.IDTypePassport,
		IDNumber:      "A01234567",
		IDDocumentRef: "kyc/passport.jpg",
	})
	s.Require().NoError(err)
	_, err = s.svc.DecideIdentity(s.ctx, owner, identity.DecisionApproved, s.reviewer, "")
	s.Require().NoError(err)

	current, err := s.listings.FindByID(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.Require().Equal(listing.StatusInReview, current.Status)

	// First verdict: rejected. Owner restarts and resubmits, second verdict
	// approves.
	_, err = s.svc.DecideListing(s.ctx, draft.ID, s.reviewer, false, "price looks wrong")
	s.Require().NoError(err)
	_, err = s.svc.RestartRevision(s.ctx, draft.ID, owner)
	s.Require().NoError(err)
	_, err = s.svc.SubmitListing(s.ctx, draft.ID, owner)
	s.Require().NoError(err)
	_, err = s.svc.DecideListing(s.ctx, draft.ID, s.reviewer, true, "")
	s.Require().NoError(err)

	final, err := s.listings.FindByID(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.Equal(listing.StatusVerified, final.Status)
	s.NoError(final.CheckVisibilityInvariant())

	trail, err := s.auditLog.ListBySubject(s.ctx, audit.ListingSubject(draft.ID))
	s.Require().NoError(err)

	transitions := []audit.Action{
		audit.ActionListingSubmitted,
		audit.ActionListingPromoted,
		audit.ActionListingRejected,
		audit.ActionListingRevisionRestart,
		audit.ActionListingSubmitted,
		audit.ActionListingApproved,
	}
	var got []audit.Action
	for _, entry := range trail {
		switch entry.Action {
		case audit.ActionPhotoAdded, audit.ActionDocumentAdded:
			continue
		}
		got = append(got, entry.Action)
	}
	s.Equal(transitions, got)

	history, err := s.requests.ListByListing(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(verification.StateRejected, history[0].State)
	s.Equal(verification.StateApproved, history[1].State)
}

func (s *WorkflowSuite) TestDecideIdentityTwiceIsIllegal() {
	owner := id.NewUserID()
	_, err := s.svc.SubmitIdentity(s.ctx, owner, IdentitySubmission{
		IDType:        identity.IDTypeNIN,
		IDNumber:      "12345678901",
		IDDocumentRef: "kyc/nin.jpg",
	})
	s.Require().NoError(err)

	_, err = s.svc.DecideIdentity(s.ctx, owner, identity.DecisionApproved, s.reviewer, "")
	s.Require().NoError(err)

	_, err = s.svc.DecideIdentity(s.ctx, owner, identity.DecisionApproved, s.reviewer, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
}

func (s *WorkflowSuite) TestReopenIdentity() {
	owner := id.NewUserID()
	s.approveOwner(owner)

	reopened, err := s.svc.ReopenIdentity(s.ctx, owner, s.reviewer)
	s.Require().NoError(err)
	s.Equal(identity.StatusPendingReview, reopened.Status)
	s.Nil(reopened.Reviewer)

	// Owners cannot trigger the reopen edge themselves on a non-approved
	// record.
	_, err = s.svc.ReopenIdentity(s.ctx, owner, s.reviewer)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
}

func (s *WorkflowSuite) TestRejectRequiresReasonBeforeAnyMutation() {
	owner := id.NewUserID()
	s.approveOwner(owner)
	draft := s.newDraft(owner)
	s.addPhoto(draft)
	s.addDocument(draft)
	_, err := s.svc.SubmitListing(s.ctx, draft.ID, owner)
	s.Require().NoError(err)

	_, err = s.svc.DecideListing(s.ctx, draft.ID, s.reviewer, false, "   ")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	current, err := s.listings.FindByID(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.Equal(listing.StatusInReview, current.Status)

	open, err := s.requests.FindOpenByListing(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.False(open.State.IsTerminal())
}

func (s *WorkflowSuite) TestDecisionOnListingNotInReviewIsStale() {
	owner := id.NewUserID()
	draft := s.newDraft(owner)

	_, err := s.svc.DecideListing(s.ctx, draft.ID, s.reviewer, true, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStaleDecision))
}

func (s *WorkflowSuite) TestAuditFailureAbortsTransition() {
	owner := id.NewUserID()
	s.approveOwner(owner)
	draft := s.newDraft(owner)
	s.addPhoto(draft)
	s.addDocument(draft)

	s.auditLog.FailNextAppend(errors.New("append refused"))

	_, err := s.svc.SubmitListing(s.ctx, draft.ID, owner)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePersistence))

	current, err := s.listings.FindByID(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.Equal(listing.StatusDraft, current.Status)
	_, reqErr := s.requests.FindOpenByListing(s.ctx, draft.ID)
	s.Require().ErrorIs(reqErr, sentinel.ErrNotFound)
}

func (s *WorkflowSuite) TestClaimReviewMarksRequestUnderReview() {
	owner := id.NewUserID()
	s.approveOwner(owner)
	draft := s.newDraft(owner)
	s.addPhoto(draft)
	s.addDocument(draft)
	_, err := s.svc.SubmitListing(s.ctx, draft.ID, owner)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.ClaimReview(s.ctx, draft.ID, s.reviewer))

	open, err := s.requests.FindOpenByListing(s.ctx, draft.ID)
	s.Require().NoError(err)
	s.Equal(verification.StateUnderReview, open.State)
	s.Require().NotNil(open.Reviewer)
	s.Equal(s.reviewer, *open.Reviewer)
}

func (s *WorkflowSuite) TestDocumentModeration() {
	owner := id.NewUserID()
	draft := s.newDraft(owner)
	doc, err := s.svc.AddDocument(s.ctx, draft.ID, owner, listing.DocUtilityBill, "docs/nepa.pdf")
	s.Require().NoError(err)

	s.Run("resubmission request needs a comment", func() {
		_, err := s.svc.ReviewDocument(s.ctx, doc.ID, s.reviewer, false, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("verdict lands and sticks", func() {
		reviewed, err := s.svc.ReviewDocument(s.ctx, doc.ID, s.reviewer, false, "scan is illegible")
		s.Require().NoError(err)
		s.Equal(listing.DocumentNeedsResubmission, reviewed.Status)

		_, err = s.svc.ReviewDocument(s.ctx, doc.ID, s.reviewer, true, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeStaleDecision))
	})
}

func (s *WorkflowSuite) TestArchivedListingCannotBeResubmitted() {
	owner := id.NewUserID()
	s.approveOwner(owner)
	draft := s.newDraft(owner)
	s.addPhoto(draft)
	s.addDocument(draft)

	archived, err := s.svc.ArchiveListing(s.ctx, draft.ID, owner)
	s.Require().NoError(err)
	s.Equal(listing.StatusArchived, archived.Status)

	_, err = s.svc.SubmitListing(s.ctx, draft.ID, owner)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
}

// unmetOf pulls the unmet condition tags out of a prerequisite error.
func unmetOf(err error) []string {
	value, ok := dErrors.Load(err, "unmet")
	if !ok {
		return nil
	}
	tags, _ := value.([]string)
	return tags
}
