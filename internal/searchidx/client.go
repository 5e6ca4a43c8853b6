// Package searchidx maintains the Redis secondary index and the
// serialized-result cache. Everything here is best-effort: the
// authoritative note data lives in the SQL store, and every method is
// written so callers can absorb failures and fall back.
package searchidx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dial opens a Redis client and verifies the connection with a short
// ping so misconfiguration fails at startup, not on first query.
func Dial(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("searchidx: ping %s: %w", addr, err)
	}
	return client, nil
}
