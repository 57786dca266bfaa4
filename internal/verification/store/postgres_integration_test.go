//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	listing "veranda/internal/listing/models"
	liststore "veranda/internal/listing/store"
	"veranda/internal/verification/models"
	"veranda/internal/verification/store"
	id "veranda/pkg/domain"
	"veranda/pkg/platform/sentinel"
	"veranda/pkg/testutil/containers"
)

type PostgresRequestSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	listings *liststore.PostgresListings
}

func TestPostgresRequestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRequestSuite))
}

func (s *PostgresRequestSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.listings = liststore.NewPostgresListings(s.postgres.DB)
}

func (s *PostgresRequestSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "verification_requests", "listings")
	s.Require().NoError(err)
}

func (s *PostgresRequestSuite) createListing() *listing.Listing {
	l, err := listing.NewListing(id.NewListingID(), id.NewUserID(), "Integration Test Flat", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.listings.Create(context.Background(), l))
	return l
}

// TestConcurrentOpenAdmitsExactlyOne drives the one-open-cycle partial unique
// index with racing inserts.
func (s *PostgresRequestSuite) TestConcurrentOpenAdmitsExactlyOne() {
	ctx := context.Background()
	l := s.createListing()
	const goroutines = 25

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			request, err := models.NewVerificationRequest(id.NewRequestID(), l.ID, l.OwnerID, time.Now())
			if err != nil {
				return
			}
			switch err := s.store.Open(ctx, request); {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one open should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")

	open, err := s.store.FindOpenByListing(ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(models.StatePending, open.State)
}

// TestClosedCycleFreesTheSlot verifies a terminal state releases the partial
// unique index so a fresh cycle can open.
func (s *PostgresRequestSuite) TestClosedCycleFreesTheSlot() {
	ctx := context.Background()
	l := s.createListing()

	first, err := models.NewVerificationRequest(id.NewRequestID(), l.ID, l.OwnerID, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Open(ctx, first))

	reviewer := id.NewUserID()
	first.ApplyClose(models.StateRejected, reviewer, "address mismatch", time.Now())
	s.Require().NoError(s.store.Update(ctx, first))

	_, err = s.store.FindOpenByListing(ctx, l.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	second, err := models.NewVerificationRequest(id.NewRequestID(), l.ID, l.OwnerID, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Open(ctx, second))

	history, err := s.store.ListByListing(ctx, l.ID)
	s.Require().NoError(err)
	s.Len(history, 2)
	s.Equal(models.StateRejected, history[0].State)
	s.Equal(models.StatePending, history[1].State)
}

// TestUnderReviewStillBlocks verifies under_review also counts as open.
func (s *PostgresRequestSuite) TestUnderReviewStillBlocks() {
	ctx := context.Background()
	l := s.createListing()

	first, err := models.NewVerificationRequest(id.NewRequestID(), l.ID, l.OwnerID, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Open(ctx, first))

	reviewer := id.NewUserID()
	first.State = models.StateUnderReview
	first.Reviewer = &reviewer
	s.Require().NoError(s.store.Update(ctx, first))

	second, err := models.NewVerificationRequest(id.NewRequestID(), l.ID, l.OwnerID, time.Now())
	s.Require().NoError(err)
	s.ErrorIs(s.store.Open(ctx, second), sentinel.ErrConflict)
}
