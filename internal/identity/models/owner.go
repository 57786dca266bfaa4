package models

import (
	"time"

	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
)

// IDType is the kind of government ID backing an identity submission.
type IDType string

const (
	IDTypeNIN           IDType = "nin"
	IDTypePassport      IDType = "passport"
	IDTypeDriverLicense IDType = "driver_license"
)

// Valid reports whether t is a known ID type.
func (t IDType) Valid() bool {
	switch t {
	case IDTypeNIN, IDTypePassport, IDTypeDriverLicense:
		return true
	}
	return false
}

// DecisionOutcome is a reviewer's verdict on a pending identity.
type DecisionOutcome string

const (
	DecisionApproved DecisionOutcome = "approved"
	DecisionRejected DecisionOutcome = "rejected"
)

// OwnerIdentity is the aggregate root for an owner's KYC record. One exists
// per account and it is never deleted.
//
// Invariants:
//   - Status approved requires Reviewer and ReviewedAt to both be set
//   - Status incomplete or pending_review requires Reviewer to be absent
//   - Reviewer decisions are supplied atomically with the transition
type OwnerIdentity struct {
	UserID id.UserID

	IDType        IDType
	IDNumber      string
	IDDocumentRef string // opaque handle owned by the file-storage collaborator
	IDExpiry      *time.Time

	EmailVerifiedAt *time.Time
	PhoneVerifiedAt *time.Time

	Status     Status
	Reviewer   *id.UserID
	ReviewedAt *time.Time
	Notes      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOwnerIdentity creates the identity record at account creation time.
func NewOwnerIdentity(userID id.UserID, now time.Time) (*OwnerIdentity, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner identity requires a user id")
	}
	return &OwnerIdentity{
		UserID:    userID,
		Status:    StatusIncomplete,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasVerifiedContact reports whether at least one contact method is verified.
func (o *OwnerIdentity) HasVerifiedContact() bool {
	return o.EmailVerifiedAt != nil || o.PhoneVerifiedAt != nil
}

// IsApproved reports whether the identity passed review.
func (o *OwnerIdentity) IsApproved() bool { return o.Status == StatusApproved }

func illegal(from, to Status) error {
	return dErrors.New(dErrors.CodeIllegalTransition, "identity transition not allowed").
		Add("from", string(from)).
		Add("to", string(to))
}

// CanSubmit checks the owner-initiated (re)submission edge. Owners cannot pull
// an approved identity back into review; that path is staff-only (CanReopen).
func (o *OwnerIdentity) CanSubmit(idType IDType, idNumber, documentRef string) error {
	if o.Status == StatusApproved {
		return illegal(o.Status, StatusPendingReview)
	}
	if !idType.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown id type")
	}
	if idNumber == "" || documentRef == "" {
		return dErrors.New(dErrors.CodeValidation, "id number and document are both required")
	}
	return nil
}

// ApplySubmit records the submitted identity data and moves the identity to
// pending_review. Any prior reviewer verdict is cleared.
func (o *OwnerIdentity) ApplySubmit(idType IDType, idNumber, documentRef string, expiry *time.Time, now time.Time) {
	o.IDType = idType
	o.IDNumber = idNumber
	o.IDDocumentRef = documentRef
	o.IDExpiry = expiry
	o.Status = StatusPendingReview
	o.Reviewer = nil
	o.ReviewedAt = nil
	o.Notes = ""
	o.UpdatedAt = now
}

// CanDecide checks the staff decision edge. The reviewer identity and
// decision timestamp travel with the transition; the state machine rejects
// the call without them.
func (o *OwnerIdentity) CanDecide(outcome DecisionOutcome, reviewer id.UserID) error {
	target := StatusApproved
	if outcome == DecisionRejected {
		target = StatusRejected
	} else if outcome != DecisionApproved {
		return dErrors.New(dErrors.CodeValidation, "unknown decision outcome")
	}
	if o.Status != StatusPendingReview {
		return illegal(o.Status, target)
	}
	if reviewer.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "decision requires a reviewer")
	}
	return nil
}

// ApplyDecision records the reviewer verdict. Call CanDecide first.
func (o *OwnerIdentity) ApplyDecision(outcome DecisionOutcome, reviewer id.UserID, notes string, now time.Time) {
	if outcome == DecisionApproved {
		o.Status = StatusApproved
	} else {
		o.Status = StatusRejected
	}
	o.Reviewer = &reviewer
	o.ReviewedAt = &now
	o.Notes = notes
	o.UpdatedAt = now
}

// CanReopen checks the administrative re-review edge out of approved.
func (o *OwnerIdentity) CanReopen(actor id.UserID) error {
	if o.Status != StatusApproved {
		return illegal(o.Status, StatusPendingReview)
	}
	if actor.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "reopen requires an acting staff identity")
	}
	return nil
}

// ApplyReopen pulls an approved identity back into review. The prior verdict
// is cleared so the approved-implies-reviewer invariant keeps holding.
func (o *OwnerIdentity) ApplyReopen(now time.Time) {
	o.Status = StatusPendingReview
	o.Reviewer = nil
	o.ReviewedAt = nil
	o.UpdatedAt = now
}

// MarkEmailVerified records email contact verification.
func (o *OwnerIdentity) MarkEmailVerified(now time.Time) {
	o.EmailVerifiedAt = &now
	o.UpdatedAt = now
}

// MarkPhoneVerified records phone contact verification.
func (o *OwnerIdentity) MarkPhoneVerified(now time.Time) {
	o.PhoneVerifiedAt = &now
	o.UpdatedAt = now
}
