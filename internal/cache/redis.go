// Package cache wraps Redis for the two hot paths: the SMS-cooldown gate and
// the issued-token cache consulted on every authenticated request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/loyaltix/server/internal/model"
)

// ErrMiss is returned when a key is absent from the cache.
var ErrMiss = errors.New("cache miss")

// Cache is a thin typed layer over a Redis client.
type Cache struct {
	rdb *redis.Client
}

// New connects to Redis using a redis:// URL and verifies the connection.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Cache{rdb: rdb}, nil
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

// AcquireCooldown takes the cooldown slot for a scope. It returns false when
// the slot is already held, i.e. a code was sent within the TTL. SETNX makes
// the check-and-set atomic across instances.
func (c *Cache) AcquireCooldown(ctx context.Context, scope string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, "otp:cooldown:"+scope, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown setnx: %w", err)
	}
	return ok, nil
}

// ReleaseCooldown frees the slot early, used when issuance fails after the
// slot was taken so the client is not locked out by our own error.
func (c *Cache) ReleaseCooldown(ctx context.Context, scope string) error {
	return c.rdb.Del(ctx, "otp:cooldown:"+scope).Err()
}

func tokenKey(kind model.TokenKind, jti uuid.UUID) string {
	return fmt.Sprintf("token:%s:%s", kind, jti)
}

// StoreToken caches a live token record until its expiry (capped at one hour
// so revocations elsewhere converge quickly).
func (c *Cache) StoreToken(ctx context.Context, rec *model.TokenRecord) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if ttl > time.Hour {
		ttl = time.Hour
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode token record: %w", err)
	}
	if err := c.rdb.Set(ctx, tokenKey(rec.Kind, rec.JTI), body, ttl).Err(); err != nil {
		return fmt.Errorf("cache token: %w", err)
	}
	return nil
}

// GetToken returns a cached token record, or ErrMiss.
func (c *Cache) GetToken(ctx context.Context, kind model.TokenKind, jti uuid.UUID) (*model.TokenRecord, error) {
	body, err := c.rdb.Get(ctx, tokenKey(kind, jti)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get cached token: %w", err)
	}
	var rec model.TokenRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode token record: %w", err)
	}
	return &rec, nil
}

// DropToken removes a token from the cache after revocation.
func (c *Cache) DropToken(ctx context.Context, kind model.TokenKind, jti uuid.UUID) error {
	return c.rdb.Del(ctx, tokenKey(kind, jti)).Err()
}
