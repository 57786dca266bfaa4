package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"veranda/internal/verification/models"
	id "veranda/pkg/domain"
	"veranda/pkg/platform/sentinel"
	txcontext "veranda/pkg/platform/tx"
)

// Postgres persists verification requests. The one-active-cycle-per-listing
// rule is a partial unique index:
//
//	CREATE UNIQUE INDEX verification_requests_one_open
//	ON verification_requests (listing_id)
//	WHERE state IN ('pending', 'under_review');
//
// which makes Open race-safe without explicit locking.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const uniqueViolation = "23505"

func (s *Postgres) Open(ctx context.Context, request *models.VerificationRequest) error {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		INSERT INTO verification_requests (id, listing_id, requester_id, state, notes, reviewer_id, started_at, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := exec.ExecContext(ctx, query,
		uuid.UUID(request.ID),
		uuid.UUID(request.ListingID),
		uuid.UUID(request.Requester),
		string(request.State),
		request.Notes,
		reviewerUUID(request.Reviewer),
		request.StartedAt,
		request.DecidedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("open verification request: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, request *models.VerificationRequest) error {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		UPDATE verification_requests SET
			state = $2, notes = $3, reviewer_id = $4, decided_at = $5
		WHERE id = $1
	`
	result, err := exec.ExecContext(ctx, query,
		uuid.UUID(request.ID),
		string(request.State),
		request.Notes,
		reviewerUUID(request.Reviewer),
		request.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("update verification request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindOpenByListing(ctx context.Context, listingID id.ListingID) (*models.VerificationRequest, error) {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		SELECT id, listing_id, requester_id, state, notes, reviewer_id, started_at, decided_at
		FROM verification_requests
		WHERE listing_id = $1 AND state IN ('pending', 'under_review')
	`
	request, err := scanRequest(exec.QueryRowContext(ctx, query, uuid.UUID(listingID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find open verification request: %w", err)
	}
	return request, nil
}

func (s *Postgres) ListByListing(ctx context.Context, listingID id.ListingID) ([]models.VerificationRequest, error) {
	exec := txcontext.Resolve(ctx, s.db)
	const query = `
		SELECT id, listing_id, requester_id, state, notes, reviewer_id, started_at, decided_at
		FROM verification_requests
		WHERE listing_id = $1
		ORDER BY started_at ASC
	`
	rows, err := exec.QueryContext(ctx, query, uuid.UUID(listingID))
	if err != nil {
		return nil, fmt.Errorf("list verification requests: %w", err)
	}
	defer rows.Close()

	var out []models.VerificationRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification request: %w", err)
		}
		out = append(out, *request)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.VerificationRequest, error) {
	var (
		request       models.VerificationRequest
		requestUUID   uuid.UUID
		listingUUID   uuid.UUID
		requesterUUID uuid.UUID
		state         string
		reviewer      *uuid.UUID
	)
	err := row.Scan(
		&requestUUID,
		&listingUUID,
		&requesterUUID,
		&state,
		&request.Notes,
		&reviewer,
		&request.StartedAt,
		&request.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	request.ID = id.RequestID(requestUUID)
	request.ListingID = id.ListingID(listingUUID)
	request.Requester = id.UserID(requesterUUID)
	request.State = models.CycleState(state)
	if reviewer != nil {
		r := id.UserID(*reviewer)
		request.Reviewer = &r
	}
	return &request, nil
}

func reviewerUUID(reviewer *id.UserID) *uuid.UUID {
	if reviewer == nil {
		return nil
	}
	r := uuid.UUID(*reviewer)
	return &r
}
