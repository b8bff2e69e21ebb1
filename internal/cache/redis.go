// Package cache wraps the shared Redis tier. Everything that must stay
// consistent across load-balanced instances and cannot live in Postgres
// goes through here: the token blacklist, OTP send cooldowns, and the
// blocked-IP lookup cache.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwhitfield/aegis/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	blacklistPrefix = "auth:blacklist:"
	cooldownPrefix  = "otp:cooldown:"
	blockedIPPrefix = "security:blocked_ip:"
)

type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

func New(cfg *config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	logger.Info("redis connection established", slog.String("addr", cfg.Addr))

	return &Cache{client: client, logger: logger}, nil
}

// NewFromClient wraps an existing client. Used by tests with miniredis.
func NewFromClient(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// BlacklistToken records a token fingerprint until the token's own expiry.
// Entries self-expire, so the blacklist never accumulates unbounded.
func (c *Cache) BlacklistToken(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, blacklistPrefix+fingerprint, "1", ttl).Err()
}

// IsTokenBlacklisted reports whether a token fingerprint is blacklisted.
// Errors are returned to the caller; token validation fails closed on them.
func (c *Cache) IsTokenBlacklisted(ctx context.Context, fingerprint string) (bool, error) {
	n, err := c.client.Exists(ctx, blacklistPrefix+fingerprint).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist lookup failed: %w", err)
	}
	return n > 0, nil
}

// AcquireCooldown sets the send cooldown for an identifier. Returns false
// if a cooldown is already in effect.
func (c *Cache) AcquireCooldown(ctx context.Context, identifier string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, cooldownPrefix+identifier, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown check failed: %w", err)
	}
	return ok, nil
}

// ReleaseCooldown clears a cooldown early (used after a successful verify
// so the next login is not throttled).
func (c *Cache) ReleaseCooldown(ctx context.Context, identifier string) error {
	return c.client.Del(ctx, cooldownPrefix+identifier).Err()
}

// CacheBlockedIP records a positive block verdict for fast rechecks.
func (c *Cache) CacheBlockedIP(ctx context.Context, ip string, ttl time.Duration) error {
	return c.client.Set(ctx, blockedIPPrefix+ip, "1", ttl).Err()
}

// IsBlockedIPCached reports whether a positive verdict is cached for ip.
func (c *Cache) IsBlockedIPCached(ctx context.Context, ip string) (bool, error) {
	n, err := c.client.Exists(ctx, blockedIPPrefix+ip).Result()
	if err != nil {
		return false, fmt.Errorf("blocked ip lookup failed: %w", err)
	}
	return n > 0, nil
}

// EvictBlockedIP clears a cached verdict after an unblock or expiry sweep.
func (c *Cache) EvictBlockedIP(ctx context.Context, ip string) error {
	return c.client.Del(ctx, blockedIPPrefix+ip).Err()
}
