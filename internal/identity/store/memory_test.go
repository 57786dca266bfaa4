package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veranda/internal/identity/models"
	id "veranda/pkg/domain"
	"veranda/pkg/platform/sentinel"
)

type IdentityStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *IdentityStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestIdentityStoreSuite(t *testing.T) {
	suite.Run(t, new(IdentityStoreSuite))
}

func (s *IdentityStoreSuite) newIdentity() *models.OwnerIdentity {
	identity, err := models.NewOwnerIdentity(id.NewUserID(), time.Now())
	s.Require().NoError(err)
	return identity
}

func (s *IdentityStoreSuite) TestSaveAndFind() {
	s.Run("saves and finds identity by user", func() {
		identity := s.newIdentity()
		s.Require().NoError(s.store.Save(s.ctx, identity))

		found, err := s.store.FindByUser(s.ctx, identity.UserID)
		s.Require().NoError(err)
		s.Equal(identity.UserID, found.UserID)
		s.Equal(models.StatusIncomplete, found.Status)
	})

	s.Run("returns ErrNotFound for unknown user", func() {
		_, err := s.store.FindByUser(s.ctx, id.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *IdentityStoreSuite) TestOverwriteOnResubmission() {
	identity := s.newIdentity()
	s.Require().NoError(s.store.Save(s.ctx, identity))

	identity.ApplySubmit(models.IDTypeNIN, "12345678901", "docs/nin-front", nil, time.Now())
	s.Require().NoError(s.store.Save(s.ctx, identity))

	found, err := s.store.FindByUser(s.ctx, identity.UserID)
	s.Require().NoError(err)
	s.Equal(models.StatusPendingReview, found.Status)
	s.Equal("12345678901", found.IDNumber)
}

func (s *IdentityStoreSuite) TestReturnedCopyIsDetached() {
	identity := s.newIdentity()
	s.Require().NoError(s.store.Save(s.ctx, identity))

	found, err := s.store.FindByUser(s.ctx, identity.UserID)
	s.Require().NoError(err)
	found.Status = models.StatusApproved

	again, err := s.store.FindByUser(s.ctx, identity.UserID)
	s.Require().NoError(err)
	s.Equal(models.StatusIncomplete, again.Status)
}
