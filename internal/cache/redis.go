package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Alias1177/MatchPredictor/models"
)

const redisKeyPrefix = "prediction:"

// RedisStore keeps predictions as JSON entries with a native TTL
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore wraps a connected client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Get reads an entry and rechecks its expiry
func (s *RedisStore) Get(ctx context.Context, key string) (*models.PredictionResult, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshaling cache entry: %w", err)
	}
	if !s.now().Before(entry.ExpiresAt) {
		return nil, false, nil
	}
	return &entry.Result, true, nil
}

// Put stores result under key for ttl
func (s *RedisStore) Put(ctx context.Context, key string, result *models.PredictionResult, ttl time.Duration) error {
	now := s.now()
	data, err := json.Marshal(models.CacheEntry{
		Key:       key,
		Result:    *result,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}

	return s.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err()
}
