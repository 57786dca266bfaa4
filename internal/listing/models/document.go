package models

import (
	"strings"
	"time"

	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
)

// DocumentType is the verification category a document belongs to.
type DocumentType string

const (
	DocCertificateOfOccupancy DocumentType = "c_of_o"
	DocDeed                   DocumentType = "deed"
	DocUtilityBill            DocumentType = "utility_bill"
	DocTaxReceipt             DocumentType = "tax_receipt"
	DocHOALetter              DocumentType = "hoa_letter"
	DocOther                  DocumentType = "other"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocCertificateOfOccupancy, DocDeed, DocUtilityBill, DocTaxReceipt, DocHOALetter, DocOther:
		return true
	}
	return false
}

// DocumentStatus is the moderation state of an uploaded document.
type DocumentStatus string

const (
	DocumentUploaded          DocumentStatus = "uploaded"
	DocumentApproved          DocumentStatus = "approved"
	DocumentNeedsResubmission DocumentStatus = "needs_resubmission"
)

// Document references an uploaded property document. As with photos, bytes
// belong to the file-storage collaborator.
type Document struct {
	ID        id.DocumentID
	ListingID id.ListingID

	Type       DocumentType
	StorageRef string
	Status     DocumentStatus

	Reviewer        *id.UserID
	ReviewerComment string

	UploadedAt time.Time
	ReviewedAt *time.Time
}

// NewDocument validates and builds a document record in uploaded state.
func NewDocument(docID id.DocumentID, listingID id.ListingID, docType DocumentType, storageRef string, now time.Time) (*Document, error) {
	if docID.IsNil() || listingID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document requires an id and a listing")
	}
	if !docType.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown document type")
	}
	if storageRef == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "document requires a storage reference")
	}
	return &Document{
		ID:         docID,
		ListingID:  listingID,
		Type:       docType,
		StorageRef: storageRef,
		Status:     DocumentUploaded,
		UploadedAt: now,
	}, nil
}

// CanReview checks a staff moderation verdict on this document.
func (d *Document) CanReview(approve bool, reviewer id.UserID, comment string) error {
	if reviewer.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "document review requires a reviewer")
	}
	if d.Status != DocumentUploaded {
		return dErrors.New(dErrors.CodeStaleDecision, "document has already been reviewed").
			Add("status", string(d.Status))
	}
	if !approve && strings.TrimSpace(comment) == "" {
		return dErrors.New(dErrors.CodeValidation, "requesting resubmission requires a comment")
	}
	return nil
}

// ApplyReview records the moderation verdict. Call CanReview first.
func (d *Document) ApplyReview(approve bool, reviewer id.UserID, comment string, now time.Time) {
	if approve {
		d.Status = DocumentApproved
	} else {
		d.Status = DocumentNeedsResubmission
	}
	d.Reviewer = &reviewer
	d.ReviewerComment = strings.TrimSpace(comment)
	d.ReviewedAt = &now
}
