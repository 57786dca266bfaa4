// Package audit owns the append-only record of every state-changing decision.
// Entries are immutable and outlive the state machines that produced them; no
// component other than the workflow service writes here.
package audit

import (
	"time"

	"github.com/google/uuid"

	id "veranda/pkg/domain"
)

// SubjectKind discriminates the tagged subject reference. Consumers switch
// over it exhaustively; adding a kind is a reviewed change.
type SubjectKind string

const (
	SubjectOwner    SubjectKind = "owner"
	SubjectListing  SubjectKind = "listing"
	SubjectRequest  SubjectKind = "verification_request"
	SubjectDocument SubjectKind = "document"
)

// Subject is a tagged reference to the entity an entry is about.
type Subject struct {
	Kind SubjectKind
	ID   uuid.UUID
}

// OwnerSubject references an owner identity.
func OwnerSubject(userID id.UserID) Subject {
	return Subject{Kind: SubjectOwner, ID: uuid.UUID(userID)}
}

// ListingSubject references a listing.
func ListingSubject(listingID id.ListingID) Subject {
	return Subject{Kind: SubjectListing, ID: uuid.UUID(listingID)}
}

// RequestSubject references a verification request.
func RequestSubject(requestID id.RequestID) Subject {
	return Subject{Kind: SubjectRequest, ID: uuid.UUID(requestID)}
}

// DocumentSubject references a listing document.
func DocumentSubject(documentID id.DocumentID) Subject {
	return Subject{Kind: SubjectDocument, ID: uuid.UUID(documentID)}
}

// Action tags form a closed vocabulary. Extend only by adding new tags; never
// repurpose an existing one.
type Action string

const (
	ActionIdentitySubmitted Action = "identity.submitted"
	ActionIdentityApproved  Action = "identity.approved"
	ActionIdentityRejected  Action = "identity.rejected"
	ActionIdentityReopened  Action = "identity.reopened"

	ActionListingSubmitted        Action = "listing.submitted"
	ActionListingPromoted         Action = "listing.promoted"
	ActionListingApproved         Action = "listing.approved"
	ActionListingRejected         Action = "listing.rejected"
	ActionListingArchived         Action = "listing.archived"
	ActionListingRevisionRestart  Action = "listing.revision_restarted"

	ActionEmailVerificationRequested Action = "email.verification_requested"
	ActionEmailVerified              Action = "email.verified"
	ActionPhoneOTPRequested          Action = "phone.otp_requested"
	ActionPhoneVerified              Action = "phone.verified"

	ActionPhotoAdded       Action = "photo.added"
	ActionDocumentAdded    Action = "document.added"
	ActionDocumentApproved Action = "document.approved"
	ActionDocumentRejected Action = "document.rejected"
)

// Entry is one immutable audit record. There is no update or delete anywhere
// in the contract.
type Entry struct {
	ID        uuid.UUID
	Subject   Subject
	Actor     id.UserID
	Action    Action
	Payload   map[string]any
	CreatedAt time.Time
}
