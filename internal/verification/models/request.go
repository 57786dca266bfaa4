package models

import (
	"time"

	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
)

// CycleState is the lifecycle stage of one verification request.
type CycleState string

const (
	StatePending     CycleState = "pending"
	StateUnderReview CycleState = "under_review"
	StateApproved    CycleState = "approved"
	StateRejected    CycleState = "rejected"
	StateCancelled   CycleState = "cancelled"
)

// IsTerminal reports whether no further decisions can land on this state.
func (s CycleState) IsTerminal() bool {
	switch s {
	case StateApproved, StateRejected, StateCancelled:
		return true
	}
	return false
}

// Outcome is a terminal cycle state chosen by the orchestrator at close time.
type Outcome = CycleState

// VerificationRequest tracks one submission cycle of a listing through
// review, independent of the listing's own mutable status field. A closed
// request is never reopened; resubmission opens a fresh one.
//
// Invariant (store-enforced): at most one request per listing may be in a
// non-terminal state at a time.
type VerificationRequest struct {
	ID        id.RequestID
	ListingID id.ListingID
	Requester id.UserID

	State    CycleState
	Notes    string
	Reviewer *id.UserID

	StartedAt time.Time
	DecidedAt *time.Time
}

// NewVerificationRequest opens a cycle in pending state.
func NewVerificationRequest(requestID id.RequestID, listingID id.ListingID, requester id.UserID, now time.Time) (*VerificationRequest, error) {
	if requestID.IsNil() || listingID.IsNil() || requester.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification request requires request, listing and requester ids")
	}
	return &VerificationRequest{
		ID:        requestID,
		ListingID: listingID,
		Requester: requester,
		State:     StatePending,
		StartedAt: now,
	}, nil
}

// CanClose checks that the request is still open and the outcome is terminal.
// Closing an already-terminal request is a stale decision, not a no-op.
func (r *VerificationRequest) CanClose(outcome Outcome, reviewer id.UserID) error {
	if !outcome.IsTerminal() {
		return dErrors.New(dErrors.CodeValidation, "close requires a terminal outcome")
	}
	if r.State.IsTerminal() {
		return dErrors.New(dErrors.CodeStaleDecision, "verification request is already decided").
			Add("state", string(r.State))
	}
	if outcome != StateCancelled && reviewer.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "decision requires a reviewer")
	}
	return nil
}

// ApplyClose records the orchestrator's decision. Call CanClose first.
func (r *VerificationRequest) ApplyClose(outcome Outcome, reviewer id.UserID, notes string, now time.Time) {
	r.State = outcome
	if !reviewer.IsNil() {
		r.Reviewer = &reviewer
	}
	r.Notes = notes
	r.DecidedAt = &now
}
