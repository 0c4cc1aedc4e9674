// Package cache keeps a short-lived Redis copy of each tenant's pipeline board.
package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"workshop_crm_backend/internal/deals/repository"
	"workshop_crm_backend/internal/events"
	"workshop_crm_backend/platform/config"
	"workshop_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "deals:board:"

// Board caches board cards per tenant. Concurrent misses for the same tenant
// share one database load. Redis failures degrade to a direct load.
type Board struct {
	rdb   redis.UniversalClient
	ttl   time.Duration
	group singleflight.Group
	log   *logger.Logger
}

func NewBoard(rdb redis.UniversalClient, ttl time.Duration, log *logger.Logger) *Board {
	return &Board{rdb: rdb, ttl: ttl, log: log}
}

// NewRedisClient builds a client from REDIS_URL, honoring REDIS_TLS_INSECURE.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.GetRedisURL() == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

func key(tenantID uuid.UUID) string {
	return keyPrefix + tenantID.String()
}

// Get returns the cached board or loads, stores and returns it.
func (b *Board) Get(ctx context.Context, tenantID uuid.UUID, load func(ctx context.Context) ([]repository.BoardCard, error)) ([]repository.BoardCard, error) {
	k := key(tenantID)

	raw, err := b.rdb.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		var cards []repository.BoardCard
		if jsonErr := json.Unmarshal(raw, &cards); jsonErr == nil {
			return cards, nil
		}
		b.warn(ctx, "board cache entry unreadable", tenantID, nil)
	case !errors.Is(err, redis.Nil):
		b.warn(ctx, "board cache read failed", tenantID, err)
	}

	v, err, _ := b.group.Do(k, func() (interface{}, error) {
		cards, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(cards); err == nil {
			if err := b.rdb.Set(ctx, k, payload, b.ttl).Err(); err != nil {
				b.warn(ctx, "board cache write failed", tenantID, err)
			}
		}
		return cards, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]repository.BoardCard), nil
}

// Invalidate drops the tenant's cached board.
func (b *Board) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	return b.rdb.Del(ctx, key(tenantID)).Err()
}

// Subscribe wires invalidation to DealsChanged.
func (b *Board) Subscribe(bus events.Bus) {
	bus.Subscribe(events.DealsChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		changed, ok := event.(events.DealsChanged)
		if !ok {
			return nil
		}
		return b.Invalidate(ctx, changed.TenantID)
	}))
}

func (b *Board) warn(ctx context.Context, msg string, tenantID uuid.UUID, err error) {
	if b.log == nil {
		return
	}
	attrs := []any{slog.String("tenant_id", tenantID.String())}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	b.log.WithContext(ctx).Warn(msg, attrs...)
}
