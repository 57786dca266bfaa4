package contact

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
	"veranda/pkg/platform/sentinel"
)

// EmailClaims carries the verification subject inside the signed token.
type EmailClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// EmailTokenService issues and validates single-use email verification
// tokens. The token itself is a signed JWT; single-use is enforced by
// recording the token ID in the cache on confirmation.
type EmailTokenService struct {
	signingKey []byte
	ttl        time.Duration
	cache      Cache
}

func NewEmailTokenService(signingKey string, ttl time.Duration, cache Cache) *EmailTokenService {
	return &EmailTokenService{
		signingKey: []byte(signingKey),
		ttl:        ttl,
		cache:      cache,
	}
}

const emailTokenIssuer = "veranda"

// Issue signs a verification token for the given address.
func (s *EmailTokenService) Issue(userID id.UserID, email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, EmailClaims{
		UserID: userID.String(),
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    emailTokenIssuer,
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign email token")
	}
	return signed, nil
}

// Confirm validates the token and burns its ID so it cannot be replayed.
func (s *EmailTokenService) Confirm(ctx context.Context, tokenString string) (id.UserID, string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &EmailClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.UserID{}, "", dErrors.New(dErrors.CodeUnauthorized, "verification token has expired")
		}
		return id.UserID{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid verification token")
	}
	claims, ok := parsed.Claims.(*EmailClaims)
	if !ok || !parsed.Valid {
		return id.UserID{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid verification token")
	}

	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return id.UserID{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid verification token")
	}

	// Burn window matches the token lifetime; after expiry the JWT check
	// above rejects it anyway.
	if err := s.cache.MarkTokenUsed(ctx, claims.ID, s.ttl); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return id.UserID{}, "", dErrors.New(dErrors.CodeUnauthorized, "verification token was already used")
		}
		return id.UserID{}, "", dErrors.Wrap(err, dErrors.CodePersistence, "record token use")
	}
	return userID, claims.Email, nil
}
