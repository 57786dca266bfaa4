// Package gate is the prerequisite evaluator for listing submission. It is
// pure domain logic: no I/O, no side effects, safe to call repeatedly.
//
// Gating policy (what must be true) lives here, decoupled from transition
// policy (what happens once it is true) in the workflow service, so new
// prerequisites can be added without touching the state machines.
package gate

import (
	identity "veranda/internal/identity/models"
	listing "veranda/internal/listing/models"
)

// ConditionTag names a single gating condition. Tags are stable identifiers,
// never user-facing text; callers render localized messages from them.
type ConditionTag string

const (
	IdentityUnverified  ConditionTag = "identity_unverified"
	ContactUnverified   ConditionTag = "contact_unverified"
	PhotoRequired       ConditionTag = "photo_required"
	PrimaryPhotoMissing ConditionTag = "primary_photo_required"
	DocumentRequired    ConditionTag = "document_required"
)

// Facts are the derived inputs the evaluator inspects. The workflow service
// computes them from the photo and document collections at evaluation time.
type Facts struct {
	PhotoCount    int
	PrimaryPhotos int
	DocumentCount int
}

// Result is the evaluator's answer for one listing.
type Result struct {
	Satisfied bool
	Unmet     []ConditionTag
}

// Evaluate checks every gating condition in fixed reporting order so API
// responses stay deterministic.
func Evaluate(owner *identity.OwnerIdentity, facts Facts) Result {
	var unmet []ConditionTag

	if !owner.IsApproved() {
		unmet = append(unmet, IdentityUnverified)
	}
	if !owner.HasVerifiedContact() {
		unmet = append(unmet, ContactUnverified)
	}
	if facts.PhotoCount < 1 {
		unmet = append(unmet, PhotoRequired)
	} else if facts.PrimaryPhotos != 1 {
		unmet = append(unmet, PrimaryPhotoMissing)
	}
	if facts.DocumentCount < 1 {
		unmet = append(unmet, DocumentRequired)
	}

	return Result{Satisfied: len(unmet) == 0, Unmet: unmet}
}

// Route picks the submission target state from the unmet conditions:
// identity-only gaps park the listing in pending_identity, any content gap in
// pending_documents, and a clean evaluation goes straight to in_review. The
// split exists so owners see the blocking category without re-deriving it
// from the raw tag list.
func Route(result Result) listing.Status {
	if result.Satisfied {
		return listing.StatusInReview
	}
	identityOnly := true
	for _, tag := range result.Unmet {
		if tag != IdentityUnverified && tag != ContactUnverified {
			identityOnly = false
			break
		}
	}
	if identityOnly {
		return listing.StatusPendingIdentity
	}
	return listing.StatusPendingDocuments
}

// Tags returns the unmet tags as strings for error details and logging.
func (r Result) Tags() []string {
	tags := make([]string, len(r.Unmet))
	for i, tag := range r.Unmet {
		tags[i] = string(tag)
	}
	return tags
}
