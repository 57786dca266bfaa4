package models

// Status is the lifecycle stage of an owner's identity verification.
type Status string

const (
	StatusIncomplete    Status = "incomplete"
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
)

// transitions is the full edge set of the identity state machine. Approved is
// terminal except for the staff-only reopen edge back to pending_review.
var transitions = map[Status][]Status{
	StatusIncomplete:    {StatusPendingReview},
	StatusPendingReview: {StatusPendingReview, StatusApproved, StatusRejected},
	StatusRejected:      {StatusPendingReview},
	StatusApproved:      {StatusPendingReview},
}

// CanTransitionTo reports whether the edge from s to next exists.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminalDecision reports whether s is a reviewer decision state.
func (s Status) IsTerminalDecision() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusIncomplete, StatusPendingReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}
