//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"usergate/internal/user/models"
	dErrors "usergate/pkg/domain-errors"
	"usergate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	pg := containers.NewPostgresContainer(s.T())

	store, err := OpenPostgresStore(context.Background(), pg.DSN)
	s.Require().NoError(err)
	s.Require().NoError(store.EnsureSchema(context.Background()))
	s.T().Cleanup(func() { _ = store.Close() })
	s.store = store
}

func (s *PostgresStoreSuite) newUser(email string) *models.User {
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    "Jane",
		LastName:     "Doe",
		Status:       models.StatusActive,
		PasswordHash: "$2a$10$fixture",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	user := s.newUser("roundtrip@example.com")
	s.Require().NoError(s.store.Save(ctx, user))

	found, err := s.store.FindByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(user.Email, found.Email)
	s.Equal(user.Status, found.Status)
	s.True(user.CreatedAt.Equal(found.CreatedAt))

	found, err = s.store.FindByEmail(ctx, "RoundTrip@Example.com")
	s.Require().NoError(err)
	s.Equal(user.ID, found.ID)
}

func (s *PostgresStoreSuite) TestDuplicateEmailConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.newUser("dup@example.com")))

	err := s.store.Save(ctx, s.newUser("dup@example.com"))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *PostgresStoreSuite) TestUpdateStatus() {
	ctx := context.Background()
	user := s.newUser("status@example.com")
	s.Require().NoError(s.store.Save(ctx, user))

	s.Require().NoError(s.store.UpdateStatus(ctx, user.ID, models.StatusSuspended))

	found, err := s.store.FindByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSuspended, found.Status)

	err = s.store.UpdateStatus(ctx, uuid.New(), models.StatusDeleted)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
