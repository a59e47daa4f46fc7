package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"usergate/internal/user/models"
	dErrors "usergate/pkg/domain-errors"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) newUser(email string) *models.User {
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    "Jane",
		LastName:     "Doe",
		Status:       models.StatusActive,
		PasswordHash: "$2a$10$fixture",
		CreatedAt:    time.Now().UTC(),
	}
}

func (s *InMemoryStoreSuite) TestLookup() {
	user := s.newUser("jane.doe@example.com")
	s.Require().NoError(s.store.Save(context.Background(), user))

	s.Run("by id", func() {
		found, err := s.store.FindByID(context.Background(), user.ID)
		s.Require().NoError(err)
		s.Equal(user, found)
	})

	s.Run("by email is case insensitive", func() {
		found, err := s.store.FindByEmail(context.Background(), "Jane.Doe@Example.COM")
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)
	})

	s.Run("missing id", func() {
		_, err := s.store.FindByID(context.Background(), uuid.New())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *InMemoryStoreSuite) TestSave() {
	user := s.newUser("jane.doe@example.com")
	s.Require().NoError(s.store.Save(context.Background(), user))

	s.Run("duplicate email conflicts", func() {
		err := s.store.Save(context.Background(), s.newUser("jane.doe@example.com"))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("stored copy is isolated from caller mutation", func() {
		user.FirstName = "mutated"
		found, err := s.store.FindByID(context.Background(), user.ID)
		s.Require().NoError(err)
		s.Equal("Jane", found.FirstName)
	})
}

func (s *InMemoryStoreSuite) TestUpdateStatus() {
	user := s.newUser("jane.doe@example.com")
	s.Require().NoError(s.store.Save(context.Background(), user))

	s.Require().NoError(s.store.UpdateStatus(context.Background(), user.ID, models.StatusSuspended))

	found, err := s.store.FindByID(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSuspended, found.Status)

	err = s.store.UpdateStatus(context.Background(), uuid.New(), models.StatusDeleted)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
