package workflow

import (
	"context"
	"strings"

	"veranda/internal/audit"
	listing "veranda/internal/listing/models"
	"veranda/internal/notify"
	"veranda/internal/workflow/uow"
	id "veranda/pkg/domain"
	dErrors "veranda/pkg/domain-errors"
)

// AddPhoto attaches an uploaded photo to the owner's listing. The first photo
// on a listing becomes primary automatically.
func (s *Service) AddPhoto(ctx context.Context, listingID id.ListingID, actor id.UserID, storageRef, caption string) (*listing.Photo, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.AddPhoto")
	defer span.End()

	var result *listing.Photo
	ctx = uow.WithKey(ctx, listingID.String())
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		l, err := s.stores.Listings.FindByID(ctx, listingID)
		if err != nil {
			return storeErr(err, "listing not found")
		}
		if l.OwnerID != actor {
			return dErrors.New(dErrors.CodeForbidden, "only the owner may add photos")
		}

		photo, err := listing.NewPhoto(id.NewPhotoID(), listingID, storageRef, actor, s.nowFunc())
		if err != nil {
			return err
		}
		photo.Caption = caption

		total, _, err := s.stores.Photos.CountByListing(ctx, listingID)
		if err != nil {
			return storeErr(err, "listing not found")
		}
		photo.Position = total
		photo.IsPrimary = total == 0

		if err := s.emit(ctx, audit.Entry{
			Subject: audit.ListingSubject(listingID),
			Actor:   actor,
			Action:  audit.ActionPhotoAdded,
			Payload: map[string]any{"photo_id": photo.ID.String(), "primary": photo.IsPrimary},
		}); err != nil {
			return err
		}
		if err := s.stores.Photos.Add(ctx, photo); err != nil {
			return storeErr(err, "listing not found")
		}
		result = photo
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.promoteIfSatisfied(ctx, listingID, actor); err != nil {
		s.logger.WarnContext(ctx, "gating re-check after photo failed",
			"listing_id", listingID.String(),
			"error", err,
		)
	}
	return result, nil
}

// SetPrimaryPhoto designates the listing's cover photo, demoting any other.
func (s *Service) SetPrimaryPhoto(ctx context.Context, listingID id.ListingID, photoID id.PhotoID, actor id.UserID) error {
	ctx, span := s.tracer.Start(ctx, "workflow.SetPrimaryPhoto")
	defer span.End()

	ctx = uow.WithKey(ctx, listingID.String())
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		l, err := s.stores.Listings.FindByID(ctx, listingID)
		if err != nil {
			return storeErr(err, "listing not found")
		}
		if l.OwnerID != actor {
			return dErrors.New(dErrors.CodeForbidden, "only the owner may change the primary photo")
		}
		if err := s.stores.Photos.SetPrimary(ctx, listingID, photoID); err != nil {
			return storeErr(err, "photo not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.promoteIfSatisfied(ctx, listingID, actor); err != nil {
		s.logger.WarnContext(ctx, "gating re-check after primary change failed",
			"listing_id", listingID.String(),
			"error", err,
		)
	}
	return nil
}

// AddDocument attaches an ownership document to the owner's listing.
func (s *Service) AddDocument(ctx context.Context, listingID id.ListingID, actor id.UserID, docType listing.DocumentType, storageRef string) (*listing.Document, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.AddDocument")
	defer span.End()

	var result *listing.Document
	ctx = uow.WithKey(ctx, listingID.String())
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		l, err := s.stores.Listings.FindByID(ctx, listingID)
		if err != nil {
			return storeErr(err, "listing not found")
		}
		if l.OwnerID != actor {
			return dErrors.New(dErrors.CodeForbidden, "only the owner may add documents")
		}

		document, err := listing.NewDocument(id.NewDocumentID(), listingID, docType, storageRef, s.nowFunc())
		if err != nil {
			return err
		}
		if err := s.emit(ctx, audit.Entry{
			Subject: audit.ListingSubject(listingID),
			Actor:   actor,
			Action:  audit.ActionDocumentAdded,
			Payload: map[string]any{"document_id": document.ID.String(), "doc_type": string(docType)},
		}); err != nil {
			return err
		}
		if err := s.stores.Documents.Add(ctx, document); err != nil {
			return storeErr(err, "listing not found")
		}
		result = document
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.promoteIfSatisfied(ctx, listingID, actor); err != nil {
		s.logger.WarnContext(ctx, "gating re-check after document failed",
			"listing_id", listingID.String(),
			"error", err,
		)
	}
	return result, nil
}

// ReviewDocument records a staff verdict on one document. Sending it back for
// resubmission notifies the owner; it may also reopen a document gap on the
// listing, which the next submission or re-check will see.
func (s *Service) ReviewDocument(ctx context.Context, documentID id.DocumentID, reviewer id.UserID, approve bool, comment string) (*listing.Document, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.ReviewDocument")
	defer span.End()

	var (
		result  *listing.Document
		ownerID id.UserID
	)
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		document, err := s.stores.Documents.FindByID(ctx, documentID)
		if err != nil {
			return storeErr(err, "document not found")
		}
		l, err := s.stores.Listings.FindByID(ctx, document.ListingID)
		if err != nil {
			return storeErr(err, "listing not found")
		}
		if err := document.CanReview(approve, reviewer, comment); err != nil {
			return err
		}
		action := audit.ActionDocumentApproved
		if !approve {
			action = audit.ActionDocumentRejected
		}
		if err := s.emit(ctx, audit.Entry{
			Subject: audit.DocumentSubject(documentID),
			Actor:   reviewer,
			Action:  action,
			Payload: map[string]any{"listing_id": document.ListingID.String(), "comment": strings.TrimSpace(comment)},
		}); err != nil {
			return err
		}
		document.ApplyReview(approve, reviewer, comment, s.nowFunc())
		if err := s.stores.Documents.Update(ctx, document); err != nil {
			return storeErr(err, "document not found")
		}
		result = document
		ownerID = l.OwnerID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !approve {
		s.notifyAsync(ctx, notify.Event{
			Tag:       notify.TagDocumentReturned,
			Recipient: uuidOf(ownerID),
			Payload: map[string]any{
				"document_id": documentID.String(),
				"comment":     result.ReviewerComment,
			},
		})
	}
	return result, nil
}

// ListPhotos returns a listing's photos in display order.
func (s *Service) ListPhotos(ctx context.Context, listingID id.ListingID) ([]listing.Photo, error) {
	photos, err := s.stores.Photos.ListByListing(ctx, listingID)
	if err != nil {
		return nil, storeErr(err, "listing not found")
	}
	return photos, nil
}

// ListDocuments returns a listing's documents, oldest first.
func (s *Service) ListDocuments(ctx context.Context, listingID id.ListingID) ([]listing.Document, error) {
	documents, err := s.stores.Documents.ListByListing(ctx, listingID)
	if err != nil {
		return nil, storeErr(err, "listing not found")
	}
	return documents, nil
}
