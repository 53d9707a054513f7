// Package cache provides a short-TTL Redis cache in front of vendor quote
// and snapshot endpoints. Cache failures are soft: a miss or a Redis error
// falls through to the live venue call.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/pkg/config"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// RedisCache caches quotes and snapshots keyed by normalized symbol
type RedisCache struct {
	client *redis.Client
	logger *logrus.Entry
	cfg    *config.RedisConfig
}

// NewRedisCache connects to Redis and verifies the connection with a ping
func NewRedisCache(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
		MaxRetries:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		logger: logger.WithField("component", "redis"),
		cfg:    cfg,
	}, nil
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Health checks Redis connectivity
func (rc *RedisCache) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// GetQuote returns a cached quote and whether it was present
func (rc *RedisCache) GetQuote(ctx context.Context, symbol string) (*models.Quote, bool) {
	data, err := rc.client.Get(ctx, quoteKey(symbol)).Bytes()
	if err != nil {
		if err != redis.Nil {
			rc.logger.WithError(err).WithField("symbol", symbol).Debug("Quote cache read failed")
		}
		return nil, false
	}
	var quote models.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		rc.logger.WithError(err).WithField("symbol", symbol).Warn("Dropping undecodable cached quote")
		return nil, false
	}
	return &quote, true
}

// SetQuote caches a quote for the given TTL. Non-positive TTLs disable
// caching for the entry.
func (rc *RedisCache) SetQuote(ctx context.Context, quote *models.Quote, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(quote)
	if err != nil {
		rc.logger.WithError(err).Warn("Failed to encode quote for caching")
		return
	}
	if err := rc.client.Set(ctx, quoteKey(quote.Symbol), data, ttl).Err(); err != nil {
		rc.logger.WithError(err).WithField("symbol", quote.Symbol).Debug("Quote cache write failed")
	}
}

// GetSnapshot returns a cached snapshot and whether it was present
func (rc *RedisCache) GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, bool) {
	data, err := rc.client.Get(ctx, snapshotKey(symbol)).Bytes()
	if err != nil {
		if err != redis.Nil {
			rc.logger.WithError(err).WithField("symbol", symbol).Debug("Snapshot cache read failed")
		}
		return nil, false
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		rc.logger.WithError(err).WithField("symbol", symbol).Warn("Dropping undecodable cached snapshot")
		return nil, false
	}
	return &snap, true
}

// SetSnapshot caches a snapshot for the given TTL
func (rc *RedisCache) SetSnapshot(ctx context.Context, snap *models.Snapshot, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		rc.logger.WithError(err).Warn("Failed to encode snapshot for caching")
		return
	}
	if err := rc.client.Set(ctx, snapshotKey(snap.Symbol), data, ttl).Err(); err != nil {
		rc.logger.WithError(err).WithField("symbol", snap.Symbol).Debug("Snapshot cache write failed")
	}
}

// Keys normalize the symbol so "btc/usd" and "BTC/USD" share an entry.

func quoteKey(symbol string) string {
	return "quote:" + strings.ToUpper(symbol)
}

func snapshotKey(symbol string) string {
	return "snapshot:" + strings.ToUpper(symbol)
}
