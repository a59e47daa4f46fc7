package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"usergate/internal/audit/metrics"
	"usergate/internal/platform/config"
	"usergate/pkg/platform/circuit"
)

// Sink is the single downstream operation the pipeline depends on: persist
// one audit record, returning its id. A sink may succeed, fail, or be
// unavailable; the pipeline translates all of that into Results.
type Sink interface {
	Write(ctx context.Context, event Event) (string, error)
}

// Service is the audit pipeline. Writes are bounded by one semaphore shared
// across all callers, so the cap limits aggregate in-flight writes rather
// than per-batch parallelism. Faults never reach the caller: every event
// yields exactly one classified Result.
type Service struct {
	sink         Sink
	sem          *semaphore.Weighted
	breaker      *circuit.Breaker
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
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

// WithBreaker overrides the default sink circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

func New(sink Sink, cfg config.AuditConfig, opts ...Option) (*Service, error) {
	if sink == nil {
		return nil, errors.New("audit sink is required")
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 8
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}

	svc := &Service{
		sink:         sink,
		sem:          semaphore.NewWeighted(cfg.BatchConcurrency),
		breaker:      circuit.New("audit-sink"),
		writeTimeout: cfg.WriteTimeout,
		logger:       slog.Default(),
		tracer:       otel.Tracer("usergate/audit"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Record audits a single event. It always returns a terminal Result; sink
// faults become FAILURE, an open breaker becomes FALLBACK, and caller
// cancellation before dispatch becomes FALLBACK as well.
func (s *Service) Record(ctx context.Context, event Event) Result {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return s.classify(NewResult("", StatusFallback, "audit cancelled before dispatch", event.CorrelationID))
	}
	defer s.sem.Release(1)
	return s.write(ctx, event)
}

// RecordAsync dispatches the audit write in the background and immediately
// returns a PROCESSING result. The terminal outcome is observable through
// metrics and logs only.
func (s *Service) RecordAsync(ctx context.Context, event Event) Result {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return s.classify(NewResult("", StatusFallback, "audit cancelled before dispatch", event.CorrelationID))
	}
	go func() {
		defer s.sem.Release(1)
		result := s.write(context.WithoutCancel(ctx), event)
		if !result.IsSuccess() {
			s.logger.Warn("async audit write did not succeed",
				"correlation_id", event.CorrelationID,
				"status", string(result.Status),
				"message", result.Message,
			)
		}
	}()
	return s.classify(NewResult("", StatusProcessing, "audit dispatched", event.CorrelationID))
}

// RecordBatch audits an ordered batch. The returned slice has the same length
// and order as the input; result[i] always corresponds to events[i] no matter
// in which order writes complete. A failing write affects only its own slot.
// If the caller is cancelled mid-batch, writes already dispatched run to
// completion and the undispatched remainder is classified FALLBACK.
func (s *Service) RecordBatch(ctx context.Context, events []Event) []Result {
	results := make([]Result, len(events))

	var wg sync.WaitGroup
	for i, event := range events {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(events); j++ {
				results[j] = s.classify(NewResult("", StatusFallback, "audit cancelled before dispatch", events[j].CorrelationID))
			}
			break
		}
		wg.Add(1)
		go func(i int, event Event) {
			defer wg.Done()
			defer s.sem.Release(1)
			results[i] = s.write(ctx, event)
		}(i, event)
	}
	wg.Wait()

	return results
}

// write performs one bounded sink write and classifies the outcome. The write
// context is detached from caller cancellation: once dispatched, a write runs
// to completion within its timeout so no result is silently dropped.
func (s *Service) write(ctx context.Context, event Event) Result {
	if s.breaker.IsOpen() {
		return s.classify(NewResult("", StatusFallback, "audit sink unavailable", event.CorrelationID))
	}

	ctx, span := s.tracer.Start(ctx, "audit.write",
		trace.WithAttributes(
			attribute.String("audit.action", event.Action),
			attribute.String("audit.source", string(event.Source)),
		))
	defer span.End()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	start := time.Now()
	id, err := s.sink.Write(writeCtx, event)
	s.metrics.ObserveWrite(time.Since(start))

	if err != nil {
		_, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.Error("audit sink circuit opened", "breaker", s.breaker.Name())
		}
		s.logger.Warn("audit write failed",
			"correlation_id", event.CorrelationID,
			"action", event.Action,
			"error", err,
		)
		return s.classify(NewResult("", StatusFailure, "audit write failed", event.CorrelationID))
	}

	_, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.logger.Info("audit sink circuit closed", "breaker", s.breaker.Name())
	}
	return s.classify(NewResult(id, StatusSuccess, "audit recorded", event.CorrelationID))
}

func (s *Service) classify(result Result) Result {
	s.metrics.RecordResult(string(result.Status))
	return result
}
