package contact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
)

func TestEmailTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	svc := NewEmailTokenService("test-signing-key", time.Hour, cache)
	userID := id.NewUserID()

	token, err := svc.Issue(userID, "owner@example.com")
	require.NoError(t, err)

	gotUser, gotEmail, err := svc.Confirm(ctx, token)
	require.NoError(t, err)
	require.Equal(t, userID, gotUser)
	require.Equal(t, "owner@example.com", gotEmail)
}

func TestEmailTokenIsSingleUse(t *testing.T) {
	ctx := context.Background()
	svc := NewEmailTokenService("test-signing-key", time.Hour, NewMemoryCache())

	token, err := svc.Issue(id.NewUserID(), "owner@example.com")
	require.NoError(t, err)

	_, _, err = svc.Confirm(ctx, token)
	require.NoError(t, err)

	_, _, err = svc.Confirm(ctx, token)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestEmailTokenRejectsWrongKey(t *testing.T) {
	ctx := context.Background()
	issuer := NewEmailTokenService("key-one", time.Hour, NewMemoryCache())
	verifier := NewEmailTokenService("key-two", time.Hour, NewMemoryCache())

	token, err := issuer.Issue(id.NewUserID(), "owner@example.com")
	require.NoError(t, err)

	_, _, err = verifier.Confirm(ctx, token)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestOTPRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewOTPService(NewMemoryCache(), 10*time.Minute, 5)
	userID := id.NewUserID()

	code, err := svc.Issue(ctx, userID)
	require.NoError(t, err)
	require.Len(t, code, 6)

	require.NoError(t, svc.Verify(ctx, userID, code))

	// Consumed on success.
	err = svc.Verify(ctx, userID, code)
	require.Error(t, err)
}

func TestOTPWrongCodeCountsAgainstCap(t *testing.T) {
	ctx := context.Background()
	svc := NewOTPService(NewMemoryCache(), 10*time.Minute, 2)
	userID := id.NewUserID()

	code, err := svc.Issue(ctx, userID)
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	require.Error(t, svc.Verify(ctx, userID, wrong))
	require.Error(t, svc.Verify(ctx, userID, wrong))

	// Cap reached: even the right code is refused and the pending code burned.
	err = svc.Verify(ctx, userID, code)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
