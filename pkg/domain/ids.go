// Package domain defines typed identifiers shared across the service.
//
// Each entity gets its own UUID-backed type so identifiers cannot be mixed up
// across aggregate boundaries at compile time. Parse helpers enforce the trust
// boundary invariant: IDs must be valid, non-empty, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "veranda/pkg/domain-errors"
)

// UserID identifies an account, owner or staff. Owner identities are keyed by
// the same ID as the account they belong to.
type UserID uuid.UUID

// ListingID identifies a property listing.
type ListingID uuid.UUID

// RequestID identifies a verification request (one review cycle).
type RequestID uuid.UUID

// PhotoID identifies a listing photo.
type PhotoID uuid.UUID

// DocumentID identifies a listing document.
type DocumentID uuid.UUID

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id ListingID) String() string  { return uuid.UUID(id).String() }
func (id RequestID) String() string  { return uuid.UUID(id).String() }
func (id PhotoID) String() string    { return uuid.UUID(id).String() }
func (id DocumentID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ListingID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id PhotoID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewUserID returns a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewListingID returns a fresh random ListingID.
func NewListingID() ListingID { return ListingID(uuid.New()) }

// NewRequestID returns a fresh random RequestID.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// NewPhotoID returns a fresh random PhotoID.
func NewPhotoID() PhotoID { return PhotoID(uuid.New()) }

// NewDocumentID returns a fresh random DocumentID.
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id is not a valid uuid")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil uuid")
	}
	return parsed, nil
}

// ParseUserID parses and validates a UserID from its string form.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return UserID{}, err
	}
	return UserID(parsed), nil
}

// ParseListingID parses and validates a ListingID from its string form.
func ParseListingID(raw string) (ListingID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return ListingID{}, err
	}
	return ListingID(parsed), nil
}

// ParseRequestID parses and validates a RequestID from its string form.
func ParseRequestID(raw string) (RequestID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return RequestID{}, err
	}
	return RequestID(parsed), nil
}

// ParsePhotoID parses and validates a PhotoID from its string form.
func ParsePhotoID(raw string) (PhotoID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return PhotoID{}, err
	}
	return PhotoID(parsed), nil
}

// ParseDocumentID parses and validates a DocumentID from its string form.
func ParseDocumentID(raw string) (DocumentID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return DocumentID{}, err
	}
	return DocumentID(parsed), nil
}
