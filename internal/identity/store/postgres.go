package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"veranda/internal/identity/models"
	id "veranda/pkg/domain"
	"veranda/pkg/platform/sentinel"
	txcontext "veranda/pkg/platform/tx"
)

// Postgres persists owner identities. One row per user, upserted on save so
// resubmissions overwrite the previous submission in place.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Save(ctx context.Context, identity *models.OwnerIdentity) error {
	exec := txcontext.Resolve(ctx, s.db)

	var reviewer *uuid.UUID
	if identity.Reviewer != nil {
		r := uuid.UUID(*identity.Reviewer)
		reviewer = &r
	}

	const query = `
		INSERT INTO owner_identities (
			user_id, id_type, id_number, id_document_ref, id_expiry,
			email_verified_at, phone_verified_at,
			status, reviewer_id, reviewed_at, notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO UPDATE SET
			id_type = EXCLUDED.id_type,
			id_number = EXCLUDED.id_number,
			id_document_ref = EXCLUDED.id_document_ref,
			id_expiry = EXCLUDED.id_expiry,
			email_verified_at = EXCLUDED.email_verified_at,
			phone_verified_at = EXCLUDED.phone_verified_at,
			status = EXCLUDED.status,
			reviewer_id = EXCLUDED.reviewer_id,
			reviewed_at = EXCLUDED.reviewed_at,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`
	_, err := exec.ExecContext(ctx, query,
		uuid.UUID(identity.UserID),
		string(identity.IDType),
		identity.IDNumber,
		identity.IDDocumentRef,
		identity.IDExpiry,
		identity.EmailVerifiedAt,
		identity.PhoneVerifiedAt,
		string(identity.Status),
		reviewer,
		identity.ReviewedAt,
		identity.Notes,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save owner identity: %w", err)
	}
	return nil
}

func (s *Postgres) FindByUser(ctx context.Context, userID id.UserID) (*models.OwnerIdentity, error) {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		SELECT user_id, id_type, id_number, id_document_ref, id_expiry,
		       email_verified_at, phone_verified_at,
		       status, reviewer_id, reviewed_at, notes,
		       created_at, updated_at
		FROM owner_identities
		WHERE user_id = $1
	`
	row := exec.QueryRowContext(ctx, query, uuid.UUID(userID))

	var (
		identity models.OwnerIdentity
		userUUID uuid.UUID
		idType   string
		status   string
		reviewer *uuid.UUID
	)
	err := row.Scan(
		&userUUID,
		&idType,
		&identity.IDNumber,
		&identity.IDDocumentRef,
		&identity.IDExpiry,
		&identity.EmailVerifiedAt,
		&identity.PhoneVerifiedAt,
		&status,
		&reviewer,
		&identity.ReviewedAt,
		&identity.Notes,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find owner identity: %w", err)
	}

	identity.UserID = id.UserID(userUUID)
	identity.IDType = models.IDType(idType)
	identity.Status = models.Status(status)
	if reviewer != nil {
		r := id.UserID(*reviewer)
		identity.Reviewer = &r
	}
	return &identity, nil
}
