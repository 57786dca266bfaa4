package models

// Status is the publication lifecycle stage of a listing.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingIdentity  Status = "pending_identity"
	StatusPendingDocuments Status = "pending_documents"
	StatusInReview         Status = "in_review"
	StatusVerified         Status = "verified"
	StatusRejected         Status = "rejected"
	StatusArchived         Status = "archived"
)

// Visibility controls who can see a listing.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityLimited Visibility = "limited"
	VisibilityPublic  Visibility = "public"
)

// transitions is the full edge set of the publication state machine. Every
// publish or reject decision passes through in_review; there is no edge from
// draft or the pending states straight to verified or rejected.
var transitions = map[Status][]Status{
	StatusDraft:            {StatusPendingIdentity, StatusPendingDocuments, StatusInReview, StatusArchived},
	StatusPendingIdentity:  {StatusInReview},
	StatusPendingDocuments: {StatusInReview},
	StatusInReview:         {StatusVerified, StatusRejected},
	StatusVerified:         {StatusArchived},
	StatusRejected:         {StatusDraft},
	StatusArchived:         {},
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

// IsGated reports whether s is waiting on prerequisite data rather than on a
// reviewer.
func (s Status) IsGated() bool {
	return s == StatusPendingIdentity || s == StatusPendingDocuments
}

// IsTerminal reports whether no edges leave s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}
