package models

import (
	"time"

	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
)

// Photo references an uploaded listing image. Bytes live with the file-storage
// collaborator; this record only holds the opaque ref and ordering metadata.
//
// Invariant (store-enforced): at most one photo per listing is primary, and
// once a listing has photos, exactly one must be primary.
type Photo struct {
	ID        id.PhotoID
	ListingID id.ListingID

	StorageRef string
	Caption    string
	Position   int
	IsPrimary  bool

	UploadedBy id.UserID
	UploadedAt time.Time
}

// NewPhoto validates and builds a photo record.
func NewPhoto(photoID id.PhotoID, listingID id.ListingID, storageRef string, uploadedBy id.UserID, now time.Time) (*Photo, error) {
	if photoID.IsNil() || listingID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "photo requires an id and a listing")
	}
	if storageRef == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "photo requires a storage reference")
	}
	return &Photo{
		ID:         photoID,
		ListingID:  listingID,
		StorageRef: storageRef,
		UploadedBy: uploadedBy,
		UploadedAt: now,
	}, nil
}
