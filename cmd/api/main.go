package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workshop_crm_backend/internal/adapters"
	"workshop_crm_backend/internal/deals"
	"workshop_crm_backend/internal/deals/cache"
	"workshop_crm_backend/internal/events"
	apphttp "workshop_crm_backend/internal/http"
	"workshop_crm_backend/internal/http/router"
	"workshop_crm_backend/internal/notification"
	"workshop_crm_backend/internal/notification/sse"
	"workshop_crm_backend/internal/whatsapp"
	"workshop_crm_backend/migrations"
	"workshop_crm_backend/platform/config"
	"workshop_crm_backend/platform/db"
	"workshop_crm_backend/platform/logger"
	"workshop_crm_backend/platform/phone"
	"workshop_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", slog.String("env", cfg.Env), slog.String("addr", cfg.HTTPAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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
	log.Info("database connection established")

	if err := db.RunMigrations(ctx, pool, migrations.FS); err != nil {
		log.Error("failed to run database migrations", slog.String("error", err.Error()))
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	eventBus := events.NewInMemoryBus(log)
	phones := phone.NewNormalizer(cfg.GetPhoneDefaultRegion())
	log.Info("phone normalizer ready", slog.String("region", phones.Region()))
	val := validator.New()

	var rdb *redis.Client
	if cfg.GetRedisURL() != "" {
		rdb, err = cache.NewRedisClient(cfg)
		if err != nil {
			log.Error("failed to connect to redis", slog.String("error", err.Error()))
			panic("failed to connect to redis: " + err.Error())
		}
		defer func() { _ = rdb.Close() }()
	} else {
		log.Warn("REDIS_URL not configured; board cache, notification delivery and cross-process pushes are disabled")
	}

	var board *cache.Board
	if rdb != nil && cfg.IsBoardCacheEnabled() {
		board = cache.NewBoard(rdb, cfg.GetBoardCacheTTL(), log)
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Delivery runs in the scheduler; this process only queues and streams.
	notificationModule := notification.New(pool, nil, cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	if rdb != nil {
		relay := sse.NewRelay(rdb, log)
		go func() {
			if err := relay.Forward(ctx, notificationModule.Stream(), nil); err != nil {
				log.Error("sse relay stopped", slog.String("error", err.Error()))
			}
		}()
	}

	dealsModule := deals.NewModule(pool, eventBus, adapters.NewDealsNotifier(notificationModule.Notifier()), board, phones, val, log)

	whatsappModule := whatsapp.NewModule(pool, cfg, adapters.NewWhatsAppLeadDirectory(dealsModule.Service()), phones, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			dealsModule,
			whatsappModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", slog.String("addr", cfg.HTTPAddr))
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		notificationModule.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", slog.String("error", err.Error()))
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
