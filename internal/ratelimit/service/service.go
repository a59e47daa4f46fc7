package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"usergate/internal/platform/config"
	"usergate/internal/ratelimit/metrics"
	"usergate/internal/ratelimit/models"
)

// BucketStore manages per-key counting windows. Implementations must resolve
// concurrent checks for the same key atomically.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
}

// Service is the admission-control front. It resolves configured limits,
// consults the bucket store, and applies the fail mode when the store cannot
// be reached. A degraded decision never blocks the caller.
type Service struct {
	buckets BucketStore
	cfg     config.RateLimitConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(buckets BucketStore, cfg config.RateLimitConfig, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("buckets store is required")
	}
	if cfg.Capacity <= 0 || cfg.Window <= 0 {
		return nil, errors.New("rate limit capacity and window must be positive")
	}
	if !cfg.FailMode.IsValid() {
		cfg.FailMode = config.FailOpen
	}

	svc := &Service{
		buckets: buckets,
		cfg:     cfg,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TryAcquire decides whether one unit of work for the key may proceed. It
// always returns a terminal decision; store failures are resolved by the
// configured fail mode and flagged as degraded.
func (s *Service) TryAcquire(ctx context.Context, prefix models.KeyPrefix, identifier string) *models.RateLimitResult {
	key := models.NewRateLimitKey(prefix, identifier)

	result, err := s.buckets.Allow(ctx, key, s.cfg.Capacity, s.cfg.Window)
	if err != nil {
		s.metrics.RecordStoreError()
		s.metrics.RecordDegraded()
		allowed := s.cfg.FailMode == config.FailOpen
		s.logger.Error("rate limit store check failed",
			"error", err,
			"fail_mode", string(s.cfg.FailMode),
			"allowed", allowed,
		)
		result = &models.RateLimitResult{
			Allowed:   allowed,
			Limit:     s.cfg.Capacity,
			Remaining: 0,
			ResetAt:   time.Now().Add(s.cfg.Window),
			Degraded:  true,
		}
		if !allowed {
			result.RetryAfter = int(s.cfg.Window.Seconds())
		}
	}

	s.metrics.RecordDecision(result.Allowed)
	if !result.Allowed && !result.Degraded {
		s.logger.Info("rate limit exceeded",
			"key_prefix", string(prefix),
			"limit", result.Limit,
			"retry_after", result.RetryAfter,
		)
	}
	return result
}

// Reset clears the window for one identifier, for admin tooling and tests.
func (s *Service) Reset(ctx context.Context, prefix models.KeyPrefix, identifier string) error {
	return s.buckets.Reset(ctx, models.NewRateLimitKey(prefix, identifier))
}
