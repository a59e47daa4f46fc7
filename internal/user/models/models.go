// Package models holds the user domain types.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "usergate/pkg/domain-errors"
)

// Status is the lifecycle state of a user account.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// ParseStatus validates a status string from an external caller.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusSuspended:
		return StatusSuspended, nil
	case StatusDeleted:
		return StatusDeleted, nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", s)
	}
}

type User struct {
	ID           uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	Status       Status
	PasswordHash string
	CreatedAt    time.Time
}
