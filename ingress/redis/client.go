package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

/* Redis-backed replay and rate-limit stores
 * One shared deployment-wide Redis arbitrates concurrent handlers across
 * containers; every check-and-mutate runs as a single conditional command
 * or server-side script, never as read-then-write from Go
 */

const (
	ReplayKeyPrefix = "formgate:replay" // Key naming: formgate:replay:{source_key}:{digest}
	RateKeyPrefix   = "formgate:rate"   // Key naming: formgate:rate:{source_key}:{unix_second}
)

// NewClient connects to Redis and verifies the connection
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return client, nil
}
