package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
)

func TestNewVerificationRequest(t *testing.T) {
	_, err := NewVerificationRequest(id.RequestID{}, id.NewListingID(), id.NewUserID(), time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	r, err := NewVerificationRequest(id.NewRequestID(), id.NewListingID(), id.NewUserID(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatePending, r.State)
	assert.False(t, r.State.IsTerminal())
}

func TestCloseRequiresTerminalOutcome(t *testing.T) {
	r, err := NewVerificationRequest(id.NewRequestID(), id.NewListingID(), id.NewUserID(), time.Now())
	require.NoError(t, err)

	assert.True(t, dErrors.HasCode(r.CanClose(StateUnderReview, id.NewUserID()), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(r.CanClose(StateApproved, id.UserID{}), dErrors.CodeValidation))

	// Cancellation is the one close that carries no reviewer.
	require.NoError(t, r.CanClose(StateCancelled, id.UserID{}))
}

func TestClosedRequestStaysClosed(t *testing.T) {
	r, err := NewVerificationRequest(id.NewRequestID(), id.NewListingID(), id.NewUserID(), time.Now())
	require.NoError(t, err)

	reviewer := id.NewUserID()
	require.NoError(t, r.CanClose(StateRejected, reviewer))
	r.ApplyClose(StateRejected, reviewer, "address mismatch", time.Now())
	assert.Equal(t, StateRejected, r.State)
	require.NotNil(t, r.Reviewer)
	assert.NotNil(t, r.DecidedAt)

	err = r.CanClose(StateApproved, reviewer)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStaleDecision))
}
