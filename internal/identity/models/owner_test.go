package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
)

func newTestIdentity(t *testing.T) *OwnerIdentity {
	t.Helper()
	o, err := NewOwnerIdentity(id.NewUserID(), time.Now())
	require.NoError(t, err)
	return o
}

func TestSubmissionMovesToPendingReview(t *testing.T) {
	o := newTestIdentity(t)
	require.NoError(t, o.CanSubmit(IDTypeNIN, "12345678901", "s3://kyc/doc.pdf"))
	o.ApplySubmit(IDTypeNIN, "12345678901", "s3://kyc/doc.pdf", nil, time.Now())
	assert.Equal(t, StatusPendingReview, o.Status)
	assert.Nil(t, o.Reviewer)
}

func TestSubmissionValidation(t *testing.T) {
	o := newTestIdentity(t)
	assert.True(t, dErrors.HasCode(o.CanSubmit("visa", "1", "ref"), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(o.CanSubmit(IDTypePassport, "", "ref"), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(o.CanSubmit(IDTypePassport, "A123", ""), dErrors.CodeValidation))
}

func TestDecisionSetsReviewerAtomically(t *testing.T) {
	o := newTestIdentity(t)
	o.ApplySubmit(IDTypeNIN, "12345678901", "s3://kyc/doc.pdf", nil, time.Now())

	reviewer := id.NewUserID()
	assert.True(t, dErrors.HasCode(o.CanDecide(DecisionApproved, id.UserID{}), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(o.CanDecide("maybe", reviewer), dErrors.CodeValidation))

	require.NoError(t, o.CanDecide(DecisionApproved, reviewer))
	o.ApplyDecision(DecisionApproved, reviewer, "documents check out", time.Now())
	assert.Equal(t, StatusApproved, o.Status)
	require.NotNil(t, o.Reviewer)
	assert.Equal(t, reviewer, *o.Reviewer)
	assert.NotNil(t, o.ReviewedAt)

	// Deciding twice is illegal; the record already left pending_review.
	assert.True(t, dErrors.HasCode(o.CanDecide(DecisionRejected, reviewer), dErrors.CodeIllegalTransition))
}

func TestApprovedIdentityCannotResubmit(t *testing.T) {
	o := newTestIdentity(t)
	o.ApplySubmit(IDTypeNIN, "12345678901", "s3://kyc/doc.pdf", nil, time.Now())
	o.ApplyDecision(DecisionApproved, id.NewUserID(), "", time.Now())

	err := o.CanSubmit(IDTypeNIN, "12345678901", "s3://kyc/doc.pdf")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIllegalTransition))
}

func TestRejectedIdentityCanResubmit(t *testing.T) {
	o := newTestIdentity(t)
	o.ApplySubmit(IDTypeNIN, "12345678901", "s3://kyc/doc.pdf", nil, time.Now())
	o.ApplyDecision(DecisionRejected, id.NewUserID(), "blurry scan", time.Now())

	require.NoError(t, o.CanSubmit(IDTypePassport, "A01234567", "s3://kyc/doc2.pdf"))
	o.ApplySubmit(IDTypePassport, "A01234567", "s3://kyc/doc2.pdf", nil, time.Now())
	assert.Equal(t, StatusPendingReview, o.Status)
	assert.Nil(t, o.Reviewer)
	assert.Empty(t, o.Notes)
}

func TestReopenIsStaffOnlyAndClearsVerdict(t *testing.T) {
	o := newTestIdentity(t)
	assert.True(t, dErrors.HasCode(o.CanReopen(id.NewUserID()), dErrors.CodeIllegalTransition))

	o.ApplySubmit(IDTypeNIN, "12345678901", "s3://kyc/doc.pdf", nil, time.Now())
	o.ApplyDecision(DecisionApproved, id.NewUserID(), "", time.Now())

	assert.True(t, dErrors.HasCode(o.CanReopen(id.UserID{}), dErrors.CodeValidation))
	require.NoError(t, o.CanReopen(id.NewUserID()))
	o.ApplyReopen(time.Now())
	assert.Equal(t, StatusPendingReview, o.Status)
	assert.Nil(t, o.Reviewer)
	assert.Nil(t, o.ReviewedAt)
}

func TestContactVerification(t *testing.T) {
	o := newTestIdentity(t)
	assert.False(t, o.HasVerifiedContact())

	o.MarkPhoneVerified(time.Now())
	assert.True(t, o.HasVerifiedContact())
	assert.Nil(t, o.EmailVerifiedAt)
}
