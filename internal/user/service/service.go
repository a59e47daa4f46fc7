// Package service implements user account operations. Audit and
// notification run behind the operations as observed side effects: their
// outcomes are logged and counted but never fail the user-facing call.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AuditRecorder,Notifier

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"usergate/internal/audit"
	"usergate/internal/notification"
	"usergate/internal/user/metrics"
	"usergate/internal/user/models"
	dErrors "usergate/pkg/domain-errors"
	"usergate/pkg/requestcontext"
)

const minPasswordLength = 8

// Store is the persistence contract the service depends on.
type Store interface {
	Save(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error
}

// AuditRecorder records one audit event, reporting its outcome as a result
// rather than an error.
type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event) audit.Result
}

// Notifier delivers user-facing messages with its own fallback handling.
type Notifier interface {
	SendWelcome(ctx context.Context, correlationID string, rcpt notification.Recipient, prefs notification.Preferences) notification.Result
	SendStatusUpdate(ctx context.Context, correlationID string, rcpt notification.Recipient, status string, extra map[string]string, prefs notification.Preferences) notification.Result
}

type Service struct {
	store    Store
	auditor  AuditRecorder
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, auditor AuditRecorder, notifier Notifier, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user store is required")
	}
	if auditor == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit recorder is required")
	}
	if notifier == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "notifier is required")
	}

	s := &Service{
		store:    store,
		auditor:  auditor,
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type CreateUserRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// CreateUser validates the request, persists the account, then records the
// audit trail and sends the welcome notification.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	address := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateEmail(address); err != nil {
		s.metrics.RecordOperation("create", "invalid")
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		s.metrics.RecordOperation("create", "invalid")
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "password must be at least %d characters", minPasswordLength)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		s.metrics.RecordOperation("create", "error")
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        address,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Status:       models.StatusActive,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Save(ctx, user); err != nil {
		s.metrics.RecordOperation("create", "error")
		return nil, err
	}

	correlationID := uuid.NewString()
	s.observeAudit(ctx, correlationID, "user_created", user.ID, map[string]any{"email": user.Email})

	welcome := s.notifier.SendWelcome(ctx, correlationID, recipientFor(user), notification.DefaultPreferences())
	s.observeNotification(ctx, correlationID, "welcome", welcome)

	s.metrics.RecordOperation("create", "ok")
	return user, nil
}

// UpdateStatus transitions a user's lifecycle state. A no-op transition
// returns the current user without touching audit or notification.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.metrics.RecordOperation("update_status", "error")
		return nil, err
	}
	previous := user.Status
	if previous == status {
		s.metrics.RecordOperation("update_status", "noop")
		return user, nil
	}

	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		s.metrics.RecordOperation("update_status", "error")
		return nil, err
	}
	user.Status = status

	correlationID := uuid.NewString()
	s.observeAudit(ctx, correlationID, "user_status_changed", user.ID, map[string]any{
		"from": string(previous),
		"to":   string(status),
	})

	update := s.notifier.SendStatusUpdate(ctx, correlationID, recipientFor(user), string(status), nil, notification.DefaultPreferences())
	s.observeNotification(ctx, correlationID, "status_update", update)

	s.metrics.RecordOperation("update_status", "ok")
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.store.FindByID(ctx, id)
}

func (s *Service) observeAudit(ctx context.Context, correlationID, action string, userID uuid.UUID, contextData map[string]any) {
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		contextData["client_ip"] = ip
	}

	event, err := audit.NewEvent(correlationID, action, userID.String(), contextData, audit.SourceAPI)
	if err != nil {
		s.logger.ErrorContext(ctx, "audit event construction failed",
			"action", action,
			"correlation_id", correlationID,
			"error", err,
		)
		return
	}

	result := s.auditor.Record(ctx, event)
	if !result.IsSuccess() {
		s.logger.WarnContext(ctx, "audit record degraded",
			"action", action,
			"correlation_id", correlationID,
			"status", string(result.Status),
			"detail", result.Message,
		)
	}
}

func (s *Service) observeNotification(ctx context.Context, correlationID, kind string, result notification.Result) {
	if result.Delivered {
		return
	}
	s.logger.WarnContext(ctx, "notification not delivered",
		"kind", kind,
		"correlation_id", correlationID,
		"disposition", result.Message,
	)
}

func validateEmail(address string) error {
	at := strings.IndexByte(address, '@')
	if at <= 0 || at == len(address)-1 || strings.Contains(address[at+1:], "@") {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid email address")
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "password is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}
	return string(hashed), nil
}

func recipientFor(user *models.User) notification.Recipient {
	return notification.Recipient{
		Email:       user.Email,
		ProfileName: user.FirstName,
	}
}
