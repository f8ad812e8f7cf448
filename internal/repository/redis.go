package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"venuebook/internal/config"
	"venuebook/internal/models"

	"github.com/redis/go-redis/v9"
)

const venuesKey = "venuebook:venues:all"

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisVenueCache хранит весь список площадок одним JSON-значением
type RedisVenueCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisVenueCache(client *redis.Client, ttl time.Duration) *RedisVenueCache {
	return &RedisVenueCache{client: client, ttl: ttl}
}

// GetVenues returns ok=false on a cache miss.
func (r *RedisVenueCache) GetVenues(ctx context.Context) ([]*models.Venue, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, venuesKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get venues from redis: %w", err)
	}

	var venues []*models.Venue
	if err := json.Unmarshal([]byte(val), &venues); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal venues: %w", err)
	}
	return venues, true, nil
}

func (r *RedisVenueCache) SetVenues(ctx context.Context, venues []*models.Venue) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(venues)
	if err != nil {
		return fmt.Errorf("failed to marshal venues: %w", err)
	}
	if err := r.client.Set(ctx, venuesKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set venues in redis: %w", err)
	}
	return nil
}

func (r *RedisVenueCache) Invalidate(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, venuesKey).Err(); err != nil {
		return fmt.Errorf("failed to delete venues from redis: %w", err)
	}
	return nil
}

// RedisRateLimiter is a fixed-window counter per key.
type RedisRateLimiter struct {
	client *redis.Client
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

func (r *RedisRateLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	redisKey := "venuebook:rate_limit:" + key
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, redisKey, window)
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

