package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workshop_crm_backend/internal/deals/cache"
	"workshop_crm_backend/internal/email"
	"workshop_crm_backend/internal/notification"
	"workshop_crm_backend/internal/notification/sse"
	"workshop_crm_backend/internal/scheduler"
	"workshop_crm_backend/platform/config"
	"workshop_crm_backend/platform/db"
	"workshop_crm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", slog.String("env", cfg.Env), slog.String("queue", cfg.GetAsynqQueue()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	var sender email.Sender = email.NoopSender{}
	if cfg.IsSMTPEnabled() {
		sender = email.NewSMTPSender(cfg)
	} else {
		log.Warn("SMTP_HOST not configured; notification emails are dropped")
	}

	rdb, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", slog.String("error", err.Error()))
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	notificationModule := notification.New(pool, sender, cfg, log)
	// Streams are served by the API; in-app pushes travel through Redis.
	notificationModule.SetPublisher(sse.NewRelay(rdb, log))

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", slog.String("error", err.Error()))
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	dispatcher := scheduler.NewNotificationOutboxDispatcher(notificationModule.Outbox(), client, cfg.GetOutboxPollInterval(), log)

	worker, err := scheduler.NewWorker(cfg, notificationModule.Processor(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", slog.String("error", err.Error()))
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", slog.String("operation", name), slog.Int("attempt", attempt), slog.String("error", err.Error()))
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
