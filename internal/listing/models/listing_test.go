package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
)

func newTestListing(t *testing.T) *Listing {
	t.Helper()
	l, err := NewListing(id.NewListingID(), id.NewUserID(), "3 Bedroom Apartment, Ikeja GRA", time.Now())
	require.NoError(t, err)
	return l
}

func TestNewListingValidation(t *testing.T) {
	now := time.Now()

	_, err := NewListing(id.ListingID{}, id.NewUserID(), "title", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewListing(id.NewListingID(), id.NewUserID(), "   ", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	_, err = NewListing(id.NewListingID(), id.NewUserID(), string(long), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"3 Bedroom Apartment, Ikeja GRA": "3-bedroom-apartment-ikeja-gra",
		"  Spaced   out  title ":         "spaced-out-title",
		"ALL CAPS!!!":                    "all-caps",
	}
	for title, want := range cases {
		l, err := NewListing(id.NewListingID(), id.NewUserID(), title, time.Now())
		require.NoError(t, err)
		assert.Equal(t, want, l.Slug, "title %q", title)
	}
}

func TestPublicationEdges(t *testing.T) {
	assert.True(t, StatusDraft.CanTransitionTo(StatusInReview))
	assert.True(t, StatusDraft.CanTransitionTo(StatusPendingIdentity))
	assert.True(t, StatusDraft.CanTransitionTo(StatusArchived))
	assert.True(t, StatusPendingIdentity.CanTransitionTo(StatusInReview))
	assert.True(t, StatusRejected.CanTransitionTo(StatusDraft))
	assert.True(t, StatusVerified.CanTransitionTo(StatusArchived))

	// Every decision passes through in_review.
	assert.False(t, StatusDraft.CanTransitionTo(StatusVerified))
	assert.False(t, StatusPendingDocuments.CanTransitionTo(StatusVerified))
	assert.False(t, StatusPendingIdentity.CanTransitionTo(StatusRejected))
	// Nothing mid-review can be archived, and archived is terminal.
	assert.False(t, StatusInReview.CanTransitionTo(StatusArchived))
	assert.False(t, StatusPendingIdentity.CanTransitionTo(StatusArchived))
	assert.True(t, StatusArchived.IsTerminal())
}

func TestVisibilityFollowsStatus(t *testing.T) {
	l := newTestListing(t)
	now := time.Now()
	require.NoError(t, l.CheckVisibilityInvariant())

	l.ApplySubmit(StatusInReview, now)
	assert.Equal(t, VisibilityLimited, l.Visibility)
	require.NoError(t, l.CheckVisibilityInvariant())

	l.ApplyApprove(now)
	assert.Equal(t, VisibilityPublic, l.Visibility)
	assert.NotNil(t, l.VerifiedAt)
	require.NoError(t, l.CheckVisibilityInvariant())

	l.ApplyArchive(now)
	assert.Equal(t, VisibilityPrivate, l.Visibility)
	require.NoError(t, l.CheckVisibilityInvariant())
}

func TestRejectRequiresReason(t *testing.T) {
	l := newTestListing(t)
	l.ApplySubmit(StatusInReview, time.Now())

	err := l.CanReject("   ")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, StatusInReview, l.Status)

	require.NoError(t, l.CanReject("photos do not match the address"))
	l.ApplyReject("photos do not match the address", time.Now())
	assert.Equal(t, StatusRejected, l.Status)
	assert.Equal(t, VisibilityPrivate, l.Visibility)
	assert.NotNil(t, l.RejectedAt)
	assert.Nil(t, l.VerifiedAt)
}

func TestRestartRevisionClearsRejection(t *testing.T) {
	l := newTestListing(t)
	now := time.Now()
	l.ApplySubmit(StatusInReview, now)
	l.ApplyReject("bad photos", now)

	require.NoError(t, l.CanRestartRevision())
	l.ApplyRestartRevision(now)
	assert.Equal(t, StatusDraft, l.Status)
	assert.Empty(t, l.RejectionReason)
	assert.Nil(t, l.RejectedAt)

	// Only rejected listings can restart.
	assert.True(t, dErrors.HasCode(l.CanRestartRevision(), dErrors.CodeIllegalTransition))
}

func TestIllegalSubmitTargets(t *testing.T) {
	l := newTestListing(t)
	assert.True(t, dErrors.HasCode(l.CanSubmitTo(StatusVerified), dErrors.CodeIllegalTransition))
	assert.True(t, dErrors.HasCode(l.CanSubmitTo(StatusArchived), dErrors.CodeIllegalTransition))

	l.ApplySubmit(StatusInReview, time.Now())
	assert.True(t, dErrors.HasCode(l.CanSubmitTo(StatusInReview), dErrors.CodeIllegalTransition))
}
