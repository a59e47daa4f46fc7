// Command server wires the admission gate, audit pipeline, notification
// dispatcher, and user API into one HTTP process. Dependency selection is
// config-driven: Redis, Kafka, and Postgres are each optional with an
// in-process fallback.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"usergate/internal/audit"
	auditmetrics "usergate/internal/audit/metrics"
	auditsink "usergate/internal/audit/sink"
	httpapi "usergate/internal/http"
	"usergate/internal/notification"
	"usergate/internal/notification/channel"
	notifymetrics "usergate/internal/notification/metrics"
	"usergate/internal/platform/config"
	"usergate/internal/platform/httpserver"
	"usergate/internal/platform/logger"
	platformredis "usergate/internal/platform/redis"
	ratelimitmetrics "usergate/internal/ratelimit/metrics"
	ratelimitmw "usergate/internal/ratelimit/middleware"
	ratelimitservice "usergate/internal/ratelimit/service"
	"usergate/internal/ratelimit/store/bucket"
	userhandler "usergate/internal/user/handler"
	usermetrics "usergate/internal/user/metrics"
	userservice "usergate/internal/user/service"
	userstore "usergate/internal/user/store"
	"usergate/pkg/platform/circuit"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := make(map[string]httpapi.HealthCheck)

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		health["redis"] = redisClient.Health
	}

	// Admission control: shared counting windows when Redis is configured,
	// per-instance windows otherwise.
	var buckets ratelimitservice.BucketStore
	if redisClient != nil {
		buckets = bucket.NewRedisBucketStore(redisClient, cfg.RateLimit.StoreTimeout)
		log.Info("rate limiter using shared redis store")
	} else {
		memStore := bucket.NewInMemoryBucketStore()
		defer memStore.Close()
		buckets = memStore
		log.Info("rate limiter using in-process store")
	}
	limiter, err := ratelimitservice.New(buckets, cfg.RateLimit,
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithMetrics(ratelimitmetrics.New()),
	)
	if err != nil {
		return err
	}
	gate := ratelimitmw.New(limiter, log, ratelimitmw.WithDisabled(cfg.RateLimit.Disabled))

	auditSink, closeSink, err := selectAuditSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSink()

	auditor, err := audit.New(auditSink, cfg.Audit,
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New()),
		audit.WithBreaker(circuit.New("audit-sink")),
	)
	if err != nil {
		return err
	}

	var retryQueue notification.Queue
	if redisClient != nil {
		retryQueue = notification.NewRedisQueue(redisClient, "")
	} else {
		retryQueue = notification.NewInMemoryQueue()
	}
	dispatcher, err := notification.New(retryQueue,
		[]notification.Channel{
			channel.NewLog(notification.ChannelEmail, log),
			channel.NewLog(notification.ChannelSMS, log),
		},
		notification.WithLogger(log),
		notification.WithMetrics(notifymetrics.New()),
		notification.WithSendTimeout(cfg.Notification.SendTimeout),
	)
	if err != nil {
		return err
	}

	users, closeUsers, err := selectUserStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeUsers()

	userSvc, err := userservice.New(users, auditor, dispatcher,
		userservice.WithLogger(log),
		userservice.WithMetrics(usermetrics.New()),
	)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:  log,
		Limiter: gate,
		Users:   userhandler.New(userSvc, log),
		Health:  health,
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// selectAuditSink prefers Kafka, then Postgres, then the in-process sink.
func selectAuditSink(ctx context.Context, cfg config.Config, log *slog.Logger) (audit.Sink, func(), error) {
	switch {
	case len(cfg.Kafka.Brokers) > 0:
		kafkaSink, err := auditsink.NewKafka(cfg.Kafka)
		if err != nil {
			return nil, nil, err
		}
		log.Info("audit sink using kafka", "topic", cfg.Kafka.AuditTopic)
		return kafkaSink, kafkaSink.Close, nil

	case cfg.PostgresDSN != "":
		pgSink, err := auditsink.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pgSink.EnsureSchema(ctx); err != nil {
			pgSink.Close()
			return nil, nil, err
		}
		log.Info("audit sink using postgres")
		return pgSink, func() { pgSink.Close() }, nil

	default:
		log.Info("audit sink using in-process store")
		return auditsink.NewMemory(), func() {}, nil
	}
}

func selectUserStore(ctx context.Context, cfg config.Config, log *slog.Logger) (userservice.Store, func(), error) {
	if cfg.PostgresDSN == "" {
		log.Info("user store using in-process store")
		return userstore.NewInMemoryStore(), func() {}, nil
	}

	pg, err := userstore.OpenPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	log.Info("user store using postgres")
	return pg, func() { pg.Close() }, nil
}
