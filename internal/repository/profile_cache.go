package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edu-platform/credential-service/internal/domain"
)

const profileKeyPrefix = "account:profile:"

// ProfileCache caches the public view of accounts. Get returns ErrNotFound on a miss.
type ProfileCache interface {
	Get(ctx context.Context, id string) (*domain.AccountProfile, error)
	Set(ctx context.Context, profile domain.AccountProfile) error
}

// RedisKV is the subset of the go-redis client used by the cache.
type RedisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type redisProfileCache struct {
	client RedisKV
	ttl    time.Duration
}

// NewRedisProfileCache stores profiles as JSON with the given TTL.
func NewRedisProfileCache(client RedisKV, ttl time.Duration) ProfileCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisProfileCache{client: client, ttl: ttl}
}

func (c *redisProfileCache) Get(ctx context.Context, id string) (*domain.AccountProfile, error) {
	raw, err := c.client.Get(ctx, profileKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get profile: %w", err)
	}

	var profile domain.AccountProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return &profile, nil
}

func (c *redisProfileCache) Set(ctx context.Context, profile domain.AccountProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := c.client.Set(ctx, profileKey(profile.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set profile: %w", err)
	}
	return nil
}

func profileKey(id string) string {
	return profileKeyPrefix + id
}
