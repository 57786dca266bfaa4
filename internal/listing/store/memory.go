package store

import (
	"context"
	"sort"
	"sync"

	"veranda/internal/listing/models"
	id "veranda/pkg/domain"
	"veranda/pkg/platform/sentinel"
)

// InMemoryListings keeps listings in a map. Used in tests and when no
// database is configured.
type InMemoryListings struct {
	mu   sync.RWMutex
	byID map[id.ListingID]models.Listing
}

func NewInMemoryListings() *InMemoryListings {
	return &InMemoryListings{byID: make(map[id.ListingID]models.Listing)}
}

func (s *InMemoryListings) Create(_ context.Context, listing *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[listing.ID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[listing.ID] = *listing
	return nil
}

func (s *InMemoryListings) Update(_ context.Context, listing *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[listing.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[listing.ID] = *listing
	return nil
}

func (s *InMemoryListings) FindByID(_ context.Context, listingID id.ListingID) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if listing, ok := s.byID[listingID]; ok {
		copied := listing
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryListings) ListByOwnerAndStatus(_ context.Context, ownerID id.UserID, status models.Status) ([]models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Listing
	for _, listing := range s.byID {
		if listing.OwnerID == ownerID && listing.Status == status {
			out = append(out, listing)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *InMemoryListings) ListByStatus(_ context.Context, status models.Status) ([]models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Listing
	for _, listing := range s.byID {
		if listing.Status == status {
			out = append(out, listing)
		}
	}
	sortByCreated(out)
	return out, nil
}

func sortByCreated(listings []models.Listing) {
	sort.Slice(listings, func(i, j int) bool {
		return listings[i].CreatedAt.Before(listings[j].CreatedAt)
	})
}

// InMemoryPhotos keeps photos grouped by listing and enforces the
// single-primary rule the way the partial unique index does in PostgreSQL.
type InMemoryPhotos struct {
	mu        sync.RWMutex
	byListing map[id.ListingID][]models.Photo
}

func NewInMemoryPhotos() *InMemoryPhotos {
	return &InMemoryPhotos{byListing: make(map[id.ListingID][]models.Photo)}
}

func (s *InMemoryPhotos) Add(_ context.Context, photo *models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if photo.IsPrimary {
		for _, existing := range s.byListing[photo.ListingID] {
			if existing.IsPrimary {
				return sentinel.ErrConflict
			}
		}
	}
	s.byListing[photo.ListingID] = append(s.byListing[photo.ListingID], *photo)
	return nil
}

// SetPrimary marks one photo primary and demotes any other.
func (s *InMemoryPhotos) SetPrimary(_ context.Context, listingID id.ListingID, photoID id.PhotoID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	photos := s.byListing[listingID]
	found := false
	for i := range photos {
		if photos[i].ID == photoID {
			found = true
			break
		}
	}
	if !found {
		return sentinel.ErrNotFound
	}
	for i := range photos {
		photos[i].IsPrimary = photos[i].ID == photoID
	}
	return nil
}

// CountByListing returns total photos and how many are primary.
func (s *InMemoryPhotos) CountByListing(_ context.Context, listingID id.ListingID) (total int, primary int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, photo := range s.byListing[listingID] {
		total++
		if photo.IsPrimary {
			primary++
		}
	}
	return total, primary, nil
}

func (s *InMemoryPhotos) ListByListing(_ context.Context, listingID id.ListingID) ([]models.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Photo{}, s.byListing[listingID]...), nil
}

// InMemoryDocuments keeps listing documents in a map.
type InMemoryDocuments struct {
	mu   sync.RWMutex
	byID map[id.DocumentID]models.Document
}

func NewInMemoryDocuments() *InMemoryDocuments {
	return &InMemoryDocuments{byID: make(map[id.DocumentID]models.Document)}
}

func (s *InMemoryDocuments) Add(_ context.Context, document *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[document.ID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[document.ID] = *document
	return nil
}

func (s *InMemoryDocuments) Update(_ context.Context, document *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[document.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[document.ID] = *document
	return nil
}

func (s *InMemoryDocuments) FindByID(_ context.Context, documentID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if document, ok := s.byID[documentID]; ok {
		copied := document
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

// CountByListing counts documents that still count toward the submission gate.
// Documents sent back for resubmission do not count.
func (s *InMemoryDocuments) CountByListing(_ context.Context, listingID id.ListingID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, document := range s.byID {
		if document.ListingID == listingID && document.Status != models.DocumentNeedsResubmission {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryDocuments) ListByListing(_ context.Context, listingID id.ListingID) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Document
	for _, document := range s.byID {
		if document.ListingID == listingID {
			out = append(out, document)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}
