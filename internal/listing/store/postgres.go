package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"veranda/internal/listing/models"
	id "veranda/pkg/domain"
	"veranda/pkg/platform/sentinel"
	txcontext "veranda/pkg/platform/tx"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// PostgresListings persists listings.
type PostgresListings struct {
	db *sql.DB
}

func NewPostgresListings(db *sql.DB) *PostgresListings {
	return &PostgresListings{db: db}
}

const listingColumns = `
	id, owner_id, title, slug, description, property_type, listing_type,
	city, price_minor, currency, status, visibility,
	submitted_at, verified_at, rejected_at, rejection_reason,
	created_at, updated_at
`

func (s *PostgresListings) Create(ctx context.Context, listing *models.Listing) error {
	exec := txcontext.Resolve(ctx, s.db)
	query := fmt.Sprintf(`
		INSERT INTO listings (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, listingColumns)
	_, err := exec.ExecContext(ctx, query,
		uuid.UUID(listing.ID),
		uuid.UUID(listing.OwnerID),
		listing.Title,
		listing.Slug,
		listing.Description,
		string(listing.PropertyType),
		string(listing.ListingType),
		listing.City,
		listing.PriceMinor,
		listing.Currency,
		string(listing.Status),
		string(listing.Visibility),
		listing.SubmittedAt,
		listing.VerifiedAt,
		listing.RejectedAt,
		listing.RejectionReason,
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

func (s *PostgresListings) Update(ctx context.Context, listing *models.Listing) error {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		UPDATE listings SET
			title = $2, slug = $3, description = $4, property_type = $5,
			listing_type = $6, city = $7, price_minor = $8, currency = $9,
			status = $10, visibility = $11,
			submitted_at = $12, verified_at = $13, rejected_at = $14,
			rejection_reason = $15, updated_at = $16
		WHERE id = $1
	`
	result, err := exec.ExecContext(ctx, query,
		uuid.UUID(listing.ID),
		listing.Title,
		listing.Slug,
		listing.Description,
		string(listing.PropertyType),
		string(listing.ListingType),
		listing.City,
		listing.PriceMinor,
		listing.Currency,
		string(listing.Status),
		string(listing.Visibility),
		listing.SubmittedAt,
		listing.VerifiedAt,
		listing.RejectedAt,
		listing.RejectionReason,
		listing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresListings) FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	exec := txcontext.Resolve(ctx, s.db)
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE id = $1`, listingColumns)
	listing, err := scanListing(exec.QueryRowContext(ctx, query, uuid.UUID(listingID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find listing: %w", err)
	}
	return listing, nil
}

func (s *PostgresListings) ListByOwnerAndStatus(ctx context.Context, ownerID id.UserID, status models.Status) ([]models.Listing, error) {
	exec := txcontext.Resolve(ctx, s.db)
	query := fmt.Sprintf(`
		SELECT %s FROM listings
		WHERE owner_id = $1 AND status = $2
		ORDER BY created_at ASC
	`, listingColumns)
	rows, err := exec.QueryContext(ctx, query, uuid.UUID(ownerID), string(status))
	if err != nil {
		return nil, fmt.Errorf("list listings by owner and status: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

func (s *PostgresListings) ListByStatus(ctx context.Context, status models.Status) ([]models.Listing, error) {
	exec := txcontext.Resolve(ctx, s.db)
	query := fmt.Sprintf(`
		SELECT %s FROM listings
		WHERE status = $1
		ORDER BY created_at ASC
	`, listingColumns)
	rows, err := exec.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list listings by status: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var (
		listing      models.Listing
		listingUUID  uuid.UUID
		ownerUUID    uuid.UUID
		propertyType string
		listingType  string
		status       string
		visibility   string
	)
	err := row.Scan(
		&listingUUID,
		&ownerUUID,
		&listing.Title,
		&listing.Slug,
		&listing.Description,
		&propertyType,
		&listingType,
		&listing.City,
		&listing.PriceMinor,
		&listing.Currency,
		&status,
		&visibility,
		&listing.SubmittedAt,
		&listing.VerifiedAt,
		&listing.RejectedAt,
		&listing.RejectionReason,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	listing.ID = id.ListingID(listingUUID)
	listing.OwnerID = id.UserID(ownerUUID)
	listing.PropertyType = models.PropertyType(propertyType)
	listing.ListingType = models.ListingType(listingType)
	listing.Status = models.Status(status)
	listing.Visibility = models.Visibility(visibility)
	return &listing, nil
}

func scanListings(rows *sql.Rows) ([]models.Listing, error) {
	var out []models.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, *listing)
	}
	return out, rows.Err()
}

// PostgresPhotos persists listing photos. The single-primary rule is enforced
// by a partial unique index on (listing_id) WHERE is_primary.
type PostgresPhotos struct {
	db *sql.DB
}

func NewPostgresPhotos(db *sql.DB) *PostgresPhotos {
	return &PostgresPhotos{db: db}
}

func (s *PostgresPhotos) Add(ctx context.Context, photo *models.Photo) error {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		INSERT INTO listing_photos (id, listing_id, storage_ref, caption, position, is_primary, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := exec.ExecContext(ctx, query,
		uuid.UUID(photo.ID),
		uuid.UUID(photo.ListingID),
		photo.StorageRef,
		photo.Caption,
		photo.Position,
		photo.IsPrimary,
		uuid.UUID(photo.UploadedBy),
		photo.UploadedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("add photo: %w", err)
	}
	return nil
}

func (s *PostgresPhotos) SetPrimary(ctx context.Context, listingID id.ListingID, photoID id.PhotoID) error {
	exec := txcontext.Resolve(ctx, s.db)

	// Demote first so the partial unique index never sees two primaries.
	const demote = `UPDATE listing_photos SET is_primary = FALSE WHERE listing_id = $1 AND is_primary`
	if _, err := exec.ExecContext(ctx, demote, uuid.UUID(listingID)); err != nil {
		return fmt.Errorf("demote primary photo: %w", err)
	}

	const promote = `UPDATE listing_photos SET is_primary = TRUE WHERE id = $1 AND listing_id = $2`
	result, err := exec.ExecContext(ctx, promote, uuid.UUID(photoID), uuid.UUID(listingID))
	if err != nil {
		return fmt.Errorf("set primary photo: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set primary photo: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresPhotos) CountByListing(ctx context.Context, listingID id.ListingID) (total int, primary int, err error) {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_primary)
		FROM listing_photos
		WHERE listing_id = $1
	`
	if err := exec.QueryRowContext(ctx, query, uuid.UUID(listingID)).Scan(&total, &primary); err != nil {
		return 0, 0, fmt.Errorf("count photos: %w", err)
	}
	return total, primary, nil
}

func (s *PostgresPhotos) ListByListing(ctx context.Context, listingID id.ListingID) ([]models.Photo, error) {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		SELECT id, listing_id, storage_ref, caption, position, is_primary, uploaded_by, uploaded_at
		FROM listing_photos
		WHERE listing_id = $1
		ORDER BY position ASC, uploaded_at ASC
	`
	rows, err := exec.QueryContext(ctx, query, uuid.UUID(listingID))
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var out []models.Photo
	for rows.Next() {
		var (
			photo        models.Photo
			photoUUID    uuid.UUID
			listingUUID  uuid.UUID
			uploaderUUID uuid.UUID
		)
		if err := rows.Scan(&photoUUID, &listingUUID, &photo.StorageRef, &photo.Caption, &photo.Position, &photo.IsPrimary, &uploaderUUID, &photo.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photo.ID = id.PhotoID(photoUUID)
		photo.ListingID = id.ListingID(listingUUID)
		photo.UploadedBy = id.UserID(uploaderUUID)
		out = append(out, photo)
	}
	return out, rows.Err()
}

// PostgresDocuments persists listing documents.
type PostgresDocuments struct {
	db *sql.DB
}

func NewPostgresDocuments(db *sql.DB) *PostgresDocuments {
	return &PostgresDocuments{db: db}
}

func (s *PostgresDocuments) Add(ctx context.Context, document *models.Document) error {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		INSERT INTO listing_documents (id, listing_id, doc_type, storage_ref, status, reviewer_id, reviewer_comment, uploaded_at, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := exec.ExecContext(ctx, query,
		uuid.UUID(document.ID),
		uuid.UUID(document.ListingID),
		string(document.Type),
		document.StorageRef,
		string(document.Status),
		reviewerUUID(document.Reviewer),
		document.ReviewerComment,
		document.UploadedAt,
		document.ReviewedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (s *PostgresDocuments) Update(ctx context.Context, document *models.Document) error {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		UPDATE listing_documents SET
			status = $2, reviewer_id = $3, reviewer_comment = $4, reviewed_at = $5
		WHERE id = $1
	`
	result, err := exec.ExecContext(ctx, query,
		uuid.UUID(document.ID),
		string(document.Status),
		reviewerUUID(document.Reviewer),
		document.ReviewerComment,
		document.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresDocuments) FindByID(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		SELECT id, listing_id, doc_type, storage_ref, status, reviewer_id, reviewer_comment, uploaded_at, reviewed_at
		FROM listing_documents
		WHERE id = $1
	`
	document, err := scanDocument(exec.QueryRowContext(ctx, query, uuid.UUID(documentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return document, nil
}

func (s *PostgresDocuments) CountByListing(ctx context.Context, listingID id.ListingID) (int, error) {
	exec := txcontext.Resolve(ctx, s.db)
	// Documents sent back for resubmission do not satisfy the gate.
	const query = `
		SELECT COUNT(*) FROM listing_documents
		WHERE listing_id = $1 AND status <> 'needs_resubmission'
	`
	var count int
	if err := exec.QueryRowContext(ctx, query, uuid.UUID(listingID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func (s *PostgresDocuments) ListByListing(ctx context.Context, listingID id.ListingID) ([]models.Document, error) {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		SELECT id, listing_id, doc_type, storage_ref, status, reviewer_id, reviewer_comment, uploaded_at, reviewed_at
		FROM listing_documents
		WHERE listing_id = $1
		ORDER BY uploaded_at ASC
	`
	rows, err := exec.QueryContext(ctx, query, uuid.UUID(listingID))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		document, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *document)
	}
	return out, rows.Err()
}

func reviewerUUID(reviewer *id.UserID) *uuid.UUID {
	if reviewer == nil {
		return nil
	}
	r := uuid.UUID(*reviewer)
	return &r
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		document    models.Document
		docUUID     uuid.UUID
		listingUUID uuid.UUID
		docType     string
		status      string
		reviewer    *uuid.UUID
	)
	err := row.Scan(
		&docUUID,
		&listingUUID,
		&docType,
		&document.StorageRef,
		&status,
		&reviewer,
		&document.ReviewerComment,
		&document.UploadedAt,
		&document.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	document.ID = id.DocumentID(docUUID)
	document.ListingID = id.ListingID(listingUUID)
	document.Type = models.DocumentType(docType)
	document.Status = models.DocumentStatus(status)
	if reviewer != nil {
		r := id.UserID(*reviewer)
		document.Reviewer = &r
	}
	return &document, nil
}
