package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/knockout-cup/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const bracketKeyPrefix = "knockout:bracket:"

// RedisBracketCache keeps rendered bracket projections in Redis/Valkey.
type RedisBracketCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisFromURL parses a redis:// or rediss:// URL and pings the server.
func NewRedisFromURL(ctx context.Context, rawURL string, ttl time.Duration) (*RedisBracketCache, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisBracketCache(client, ttl), nil
}

func NewRedisBracketCache(client *redis.Client, ttl time.Duration) *RedisBracketCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisBracketCache{client: client, ttl: ttl}
}

func bracketKey(id uuid.UUID) string {
	return bracketKeyPrefix + id.String()
}

// GetBracket returns (nil, nil) on a cache miss.
func (c *RedisBracketCache) GetBracket(ctx context.Context, id uuid.UUID) (*models.Bracket, error) {
	val, err := c.client.Get(ctx, bracketKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var b models.Bracket
	if err := json.Unmarshal(val, &b); err != nil {
		return nil, fmt.Errorf("corrupt cached bracket %s: %w", id, err)
	}
	return &b, nil
}

func (c *RedisBracketCache) SetBracket(ctx context.Context, id uuid.UUID, bracket *models.Bracket) error {
	val, err := json.Marshal(bracket)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, bracketKey(id), val, c.ttl).Err()
}

func (c *RedisBracketCache) InvalidateBracket(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, bracketKey(id)).Err()
}

func (c *RedisBracketCache) Close() error {
	return c.client.Close()
}
