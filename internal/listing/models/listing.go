package models

import (
	"strings"
	"time"

	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
)

// PropertyType categorizes the physical property.
type PropertyType string

const (
	PropertyApartment  PropertyType = "apartment"
	PropertyDuplex     PropertyType = "duplex"
	PropertyBungalow   PropertyType = "bungalow"
	PropertyTerrace    PropertyType = "terrace"
	PropertyDetached   PropertyType = "detached"
	PropertyLand       PropertyType = "land"
	PropertyCommercial PropertyType = "commercial"
	PropertyOther      PropertyType = "other"
)

// ListingType categorizes the commercial offer.
type ListingType string

const (
	ListingRent     ListingType = "rent"
	ListingSale     ListingType = "sale"
	ListingShortlet ListingType = "shortlet"
)

// Listing is the aggregate root for a property draft and its publication
// lifecycle. Photo and document counts are derived from their collections at
// evaluation time and deliberately not stored here.
//
// Invariants:
//   - Visibility is public if and only if Status is verified
//   - RejectionReason is set only in rejected
//   - VerifiedAt and RejectedAt are mutually exclusive
type Listing struct {
	ID      id.ListingID
	OwnerID id.UserID

	Title        string
	Slug         string
	Description  string
	PropertyType PropertyType
	ListingType  ListingType
	City         string
	PriceMinor   int64 // price in minor currency units
	Currency     string

	Status     Status
	Visibility Visibility

	SubmittedAt     *time.Time
	VerifiedAt      *time.Time
	RejectedAt      *time.Time
	RejectionReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewListing creates a draft listing owned by the given identity.
func NewListing(listingID id.ListingID, ownerID id.UserID, title string, now time.Time) (*Listing, error) {
	title = strings.TrimSpace(title)
	if listingID.IsNil() || ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing requires an id and an owner")
	}
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing title cannot be empty")
	}
	if len(title) > 200 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing title must be 200 characters or less")
	}
	return &Listing{
		ID:         listingID,
		OwnerID:    ownerID,
		Title:      title,
		Slug:       slugify(title),
		Status:     StatusDraft,
		Visibility: VisibilityPrivate,
		Currency:   "NGN",
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func illegal(from, to Status) error {
	return dErrors.New(dErrors.CodeIllegalTransition, "listing transition not allowed").
		Add("from", string(from)).
		Add("to", string(to))
}

// CanSubmitTo checks the submission edge out of draft. The target state is
// chosen by the orchestrator from the evaluator's unmet conditions.
func (l *Listing) CanSubmitTo(target Status) error {
	if target != StatusPendingIdentity && target != StatusPendingDocuments && target != StatusInReview {
		return illegal(l.Status, target)
	}
	if l.Status != StatusDraft || !l.Status.CanTransitionTo(target) {
		return illegal(l.Status, target)
	}
	return nil
}

// ApplySubmit moves a draft into its routed submission state. Visibility
// becomes limited: the owner can still see it, the public cannot.
func (l *Listing) ApplySubmit(target Status, now time.Time) {
	l.Status = target
	l.Visibility = VisibilityLimited
	l.SubmittedAt = &now
	l.UpdatedAt = now
}

// CanPromote checks the automatic re-check edge from a gated state into
// in_review.
func (l *Listing) CanPromote() error {
	if !l.Status.IsGated() {
		return illegal(l.Status, StatusInReview)
	}
	return nil
}

// ApplyPromote moves a gated listing into in_review once its gaps close.
func (l *Listing) ApplyPromote(now time.Time) {
	l.Status = StatusInReview
	l.UpdatedAt = now
}

// CanApprove checks the staff approval edge.
func (l *Listing) CanApprove() error {
	if l.Status != StatusInReview {
		return illegal(l.Status, StatusVerified)
	}
	return nil
}

// ApplyApprove publishes the listing: verified status, public visibility,
// verified-at timestamp.
func (l *Listing) ApplyApprove(now time.Time) {
	l.Status = StatusVerified
	l.Visibility = VisibilityPublic
	l.VerifiedAt = &now
	l.RejectedAt = nil
	l.UpdatedAt = now
}

// CanReject checks the staff rejection edge. A non-empty reason is mandatory
// before any state mutation happens.
func (l *Listing) CanReject(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection requires a non-empty reason")
	}
	if l.Status != StatusInReview {
		return illegal(l.Status, StatusRejected)
	}
	return nil
}

// ApplyReject records the rejection. Visibility stays out of public.
func (l *Listing) ApplyReject(reason string, now time.Time) {
	l.Status = StatusRejected
	l.Visibility = VisibilityPrivate
	l.RejectedAt = &now
	l.VerifiedAt = nil
	l.RejectionReason = strings.TrimSpace(reason)
	l.UpdatedAt = now
}

// CanRestartRevision checks the owner-initiated rejected → draft edge.
func (l *Listing) CanRestartRevision() error {
	if l.Status != StatusRejected {
		return illegal(l.Status, StatusDraft)
	}
	return nil
}

// ApplyRestartRevision returns the listing to draft, clearing the rejection.
func (l *Listing) ApplyRestartRevision(now time.Time) {
	l.Status = StatusDraft
	l.Visibility = VisibilityPrivate
	l.RejectedAt = nil
	l.RejectionReason = ""
	l.UpdatedAt = now
}

// CanArchive checks the withdrawal edge. Only drafts and live listings can be
// withdrawn; anything mid-review must be decided first.
func (l *Listing) CanArchive() error {
	if !l.Status.CanTransitionTo(StatusArchived) {
		return illegal(l.Status, StatusArchived)
	}
	return nil
}

// ApplyArchive withdraws the listing. Archived is terminal.
func (l *Listing) ApplyArchive(now time.Time) {
	l.Status = StatusArchived
	l.Visibility = VisibilityPrivate
	l.UpdatedAt = now
}

// CheckVisibilityInvariant verifies visibility = public iff status = verified.
// Exposed so tests can assert it after every transition.
func (l *Listing) CheckVisibilityInvariant() error {
	public := l.Visibility == VisibilityPublic
	verified := l.Status == StatusVerified
	if public != verified {
		return dErrors.New(dErrors.CodeInvariantViolation, "visibility must be public exactly when status is verified").
			Add("status", string(l.Status)).
			Add("visibility", string(l.Visibility))
	}
	return nil
}

func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
