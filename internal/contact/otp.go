package contact

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
	"veranda/pkg/platform/sentinel"
)

// OTPService issues and checks short-lived phone verification codes. Codes
// are stored only as bcrypt hashes; the plaintext exists once, on the way to
// the SMS gateway.
type OTPService struct {
	cache       Cache
	ttl         time.Duration
	maxAttempts int
}

func NewOTPService(cache Cache, ttl time.Duration, maxAttempts int) *OTPService {
	return &OTPService{
		cache:       cache,
		ttl:         ttl,
		maxAttempts: maxAttempts,
	}
}

// Issue generates a fresh 6-digit code for the user, replacing any pending
// one. The returned code goes to the SMS gateway, never to logs.
func (s *OTPService) Issue(ctx context.Context, userID id.UserID) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "generate otp")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "hash otp")
	}
	if err := s.cache.SetOTP(ctx, userID.String(), hash, s.ttl); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodePersistence, "store otp")
	}
	return code, nil
}

// Verify checks the submitted code. A wrong code counts against the attempt
// cap; hitting the cap burns the pending code entirely.
func (s *OTPService) Verify(ctx context.Context, userID id.UserID, code string) error {
	hash, attempts, err := s.cache.GetOTP(ctx, userID.String())
	if err != nil {
		if errors.Is(err, sentinel.ErrExpired) {
			return dErrors.New(dErrors.CodeUnauthorized, "no pending code, request a new one")
		}
		return dErrors.Wrap(err, dErrors.CodePersistence, "load otp")
	}
	if attempts >= s.maxAttempts {
		_ = s.cache.DeleteOTP(ctx, userID.String())
		return dErrors.New(dErrors.CodeUnauthorized, "too many attempts, request a new code")
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(code)) != nil {
		if err := s.cache.IncrementOTPAttempts(ctx, userID.String()); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "record otp attempt")
		}
		return dErrors.New(dErrors.CodeUnauthorized, "incorrect code")
	}
	if err := s.cache.DeleteOTP(ctx, userID.String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "consume otp")
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
