// Package store persists user accounts. Implementations report duplicate
// emails as CodeConflict and missing users as CodeNotFound.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"usergate/internal/user/models"
	dErrors "usergate/pkg/domain-errors"
)

// InMemoryStore keeps users in process. It backs tests and single-instance
// development deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *InMemoryStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(user.Email)
	if existing, ok := s.byEmail[key]; ok && existing != user.ID {
		return dErrors.New(dErrors.CodeConflict, "email already registered")
	}

	clone := *user
	s.byID[user.ID] = &clone
	s.byEmail[key] = user.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	clone := *user
	return &clone, nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	clone := *s.byID[id]
	return &clone, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	user.Status = status
	return nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
