package metrics

import (
	"context"
	"fmt"
	"time"

	ingressredis "github.com/menu-planning/formgate/ingress/redis"
	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 1000

// RedisCollector implements the Collector interface for the Redis-backed stores
type RedisCollector struct {
	client *redis.Client
}

// NewRedisCollector creates a new Redis metrics collector
func NewRedisCollector(client *redis.Client) *RedisCollector {
	return &RedisCollector{
		client: client,
	}
}

// Collect gathers the full snapshot from Redis
func (c *RedisCollector) Collect(ctx context.Context) (Snapshot, error) {
	replayBacklog, err := c.GetReplayBacklog(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting replay backlog: %w", err)
	}

	rateWindows, err := c.GetActiveRateWindows(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting active rate windows: %w", err)
	}

	return Snapshot{
		ReplayBacklog:     replayBacklog,
		ActiveRateWindows: rateWindows,
		Timestamp:         time.Now(),
	}, nil
}

// GetReplayBacklog counts the retained delivery digests
func (c *RedisCollector) GetReplayBacklog(ctx context.Context) (int64, error) {
	return c.countKeys(ctx, ingressredis.ReplayKeyPrefix+":*")
}

// GetActiveRateWindows counts the live per-source counting windows
func (c *RedisCollector) GetActiveRateWindows(ctx context.Context) (int64, error) {
	return c.countKeys(ctx, ingressredis.RateKeyPrefix+":*")
}

// countKeys walks the keyspace with SCAN so the count never blocks Redis
func (c *RedisCollector) countKeys(ctx context.Context, match string) (int64, error) {
	var count int64
	var cursor uint64

	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, scanBatchSize).Result()
		if err != nil {
			return 0, fmt.Errorf("scanning %s keys: %w", match, err)
		}

		count += int64(len(keys))
		cursor = next

		if cursor == 0 {
			break
		}
	}

	return count, nil
}
