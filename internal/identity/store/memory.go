package store

import (
	"context"
	"sync"

	"veranda/internal/identity/models"
	id "veranda/pkg/domain"
	"veranda/pkg/platform/sentinel"
)

// InMemory keeps owner identities in a map. Used in tests and when no
// database is configured; it favors clarity over performance.
type InMemory struct {
	mu     sync.RWMutex
	byUser map[id.UserID]models.OwnerIdentity
}

func NewInMemory() *InMemory {
	return &InMemory{byUser: make(map[id.UserID]models.OwnerIdentity)}
}

func (s *InMemory) Save(_ context.Context, identity *models.OwnerIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[identity.UserID] = *identity
	return nil
}

func (s *InMemory) FindByUser(_ context.Context, userID id.UserID) (*models.OwnerIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if identity, ok := s.byUser[userID]; ok {
		copied := identity
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}
