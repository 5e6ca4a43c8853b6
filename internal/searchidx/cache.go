package searchidx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/starford/notemesh/internal/search"
)

var _ search.ResultCache = (*Cache)(nil)

// Cache stores serialized search, suggestion and stats payloads under
// their derived keys. It shares the breaker discipline of the index:
// a dead Redis makes every call fail fast instead of hanging requests.
type Cache struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

func NewCache(client *redis.Client, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		client: client,
		cb:     newBreaker("result-cache", logger),
		logger: logger,
	}
}

// Get returns the cached payload, or (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := c.cb.Execute(func() (any, error) {
		data, err := c.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return []byte(nil), nil
		}
		return data, err
	})
	if err != nil {
		return nil, fmt.Errorf("searchidx: cache get %s: %w", key, err)
	}
	return res.([]byte), nil
}

func (c *Cache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.client.Set(ctx, key, value, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("searchidx: cache put %s: %w", key, err)
	}
	return nil
}

// InvalidateUser drops every cached payload belonging to one user.
// Called after note or share mutations so the user never reads a result
// set that predates their own write.
func (c *Cache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	patterns := []string{
		fmt.Sprintf("result:%s:*", userID),
		fmt.Sprintf("suggest:%s:*", userID),
		fmt.Sprintf("stats:%s", userID),
	}

	_, err := c.cb.Execute(func() (any, error) {
		for _, pattern := range patterns {
			iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
			for iter.Next(ctx) {
				if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
					return nil, err
				}
			}
			if err := iter.Err(); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("searchidx: invalidate user %s: %w", userID, err)
	}
	return nil
}
