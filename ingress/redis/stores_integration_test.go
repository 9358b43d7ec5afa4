//go:build integration

package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menu-planning/formgate/ingress/redis"
)

func TestReplayStore_CrossClient_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("exactly one acceptance across simulated containers", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		// Each simulated container gets its own client and store; only the
		// Redis instance is shared, as in a real multi-container deployment.
		const containers = 8
		stores := make([]*redis.ReplayStore, containers)
		for i := range stores {
			client := CreateTestClient(t, redisContainer.Addr)
			defer client.Close()
			stores[i] = redis.NewReplayStore(client)
		}

		now := time.Now()
		var accepted atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})

		for _, store := range stores {
			wg.Add(1)
			go func(s *redis.ReplayStore) {
				defer wg.Done()
				<-start
				ok, err := s.CheckAndRecord(ctx, "digest-contested", "source-1", now, 10*time.Minute)
				require.NoError(t, err)
				if ok {
					accepted.Add(1)
				}
			}(store)
		}

		close(start)
		wg.Wait()
		assert.Equal(t, int64(1), accepted.Load())
	})

	t.Run("digest re-accepted after real TTL expiry", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		client := CreateTestClient(t, redisContainer.Addr)
		defer client.Close()

		store := redis.NewReplayStore(client)
		ttl := 2 * time.Second

		first, err := store.CheckAndRecord(ctx, "digest-a", "source-1", time.Now(), ttl)
		require.NoError(t, err)
		require.True(t, first)

		within, err := store.CheckAndRecord(ctx, "digest-a", "source-1", time.Now(), ttl)
		require.NoError(t, err)
		require.False(t, within)

		time.Sleep(ttl + 500*time.Millisecond)

		after, err := store.CheckAndRecord(ctx, "digest-a", "source-1", time.Now(), ttl)
		require.NoError(t, err)
		assert.True(t, after)
	})
}

func TestRateLimiter_CrossClient_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("limit shared across simulated containers", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		const limit = 3
		const containers = 6
		limiters := make([]*redis.RateLimiter, containers)
		for i := range limiters {
			client := CreateTestClient(t, redisContainer.Addr)
			defer client.Close()
			limiters[i] = redis.NewRateLimiter(client, limit)
		}

		// A fixed instant keeps every call in the same accounting window.
		now := time.Now()
		var admitted atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})

		for _, limiter := range limiters {
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func(l *redis.RateLimiter) {
					defer wg.Done()
					<-start
					d, err := l.Allow(ctx, "source-1", now)
					require.NoError(t, err)
					if d.Allowed {
						admitted.Add(1)
					}
				}(limiter)
			}
		}

		close(start)
		wg.Wait()
		assert.Equal(t, int64(limit), admitted.Load())
	})
}
