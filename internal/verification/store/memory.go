package store

import (
	"context"
	"sort"
	"sync"

	"veranda/internal/verification/models"
	id "veranda/pkg/domain"
	"veranda/pkg/platform/sentinel"
)

// InMemory keeps verification requests in a map and enforces the one-active-
// cycle-per-listing rule the way the partial unique index does in PostgreSQL.
type InMemory struct {
	mu   sync.RWMutex
	byID map[id.RequestID]models.VerificationRequest
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.RequestID]models.VerificationRequest)}
}

// Open inserts a new request. Returns ErrConflict when the listing already
// has a request in a non-terminal state.
func (s *InMemory) Open(_ context.Context, request *models.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.ListingID == request.ListingID && !existing.State.IsTerminal() {
			return sentinel.ErrConflict
		}
	}
	s.byID[request.ID] = *request
	return nil
}

func (s *InMemory) Update(_ context.Context, request *models.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[request.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[request.ID] = *request
	return nil
}

// FindOpenByListing returns the listing's non-terminal request, if any.
func (s *InMemory) FindOpenByListing(_ context.Context, listingID id.ListingID) (*models.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, request := range s.byID {
		if request.ListingID == listingID && !request.State.IsTerminal() {
			copied := request
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListByListing returns every cycle for the listing, oldest first.
func (s *InMemory) ListByListing(_ context.Context, listingID id.ListingID) ([]models.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.VerificationRequest
	for _, request := range s.byID {
		if request.ListingID == listingID {
			out = append(out, request)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}
