package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestRedisCollector_NewRedisCollector(t *testing.T) {
	t.Run("creates collector successfully", func(t *testing.T) {
		collector := NewRedisCollector(nil)

		assert.NotNil(t, collector)
	})
}

func TestRedisCollector_GetReplayBacklog(t *testing.T) {
	ctx := context.Background()

	t.Run("counts only replay keys", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		collector := NewRedisCollector(client)

		mr.Set("formgate:replay:source-1:digest-a", "2024-01-01T12:00:00Z")
		mr.Set("formgate:replay:source-1:digest-b", "2024-01-01T12:00:01Z")
		mr.Set("formgate:replay:source-2:digest-a", "2024-01-01T12:00:02Z")
		mr.Set("formgate:rate:source-1:1704110400", "2")
		mr.Set("unrelated:key", "x")

		backlog, err := collector.GetReplayBacklog(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(3), backlog)
	})

	t.Run("empty keyspace counts zero", func(t *testing.T) {
		_, client := setupTestRedis(t)
		collector := NewRedisCollector(client)

		backlog, err := collector.GetReplayBacklog(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(0), backlog)
	})

	t.Run("error - redis unavailable", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		collector := NewRedisCollector(client)
		mr.Close()

		_, err := collector.GetReplayBacklog(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "scanning")
	})
}

func TestRedisCollector_GetActiveRateWindows(t *testing.T) {
	ctx := context.Background()

	t.Run("counts only rate window keys", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		collector := NewRedisCollector(client)

		mr.Set("formgate:rate:source-1:1704110400", "2")
		mr.Set("formgate:rate:source-2:1704110400", "1")
		mr.Set("formgate:replay:source-1:digest-a", "2024-01-01T12:00:00Z")

		windows, err := collector.GetActiveRateWindows(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(2), windows)
	})
}

func TestRedisCollector_Collect(t *testing.T) {
	ctx := context.Background()

	t.Run("success - gathers full snapshot", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		collector := NewRedisCollector(client)

		mr.Set("formgate:replay:source-1:digest-a", "2024-01-01T12:00:00Z")
		mr.Set("formgate:rate:source-1:1704110400", "2")
		mr.Set("formgate:rate:source-2:1704110401", "1")

		before := time.Now()
		snapshot, err := collector.Collect(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(1), snapshot.ReplayBacklog)
		assert.Equal(t, int64(2), snapshot.ActiveRateWindows)
		assert.False(t, snapshot.Timestamp.Before(before))
	})

	t.Run("error - redis unavailable", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		collector := NewRedisCollector(client)
		mr.Close()

		_, err := collector.Collect(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting replay backlog")
	})
}

func TestCollector_Interface(t *testing.T) {
	t.Run("RedisCollector implements Collector interface", func(t *testing.T) {
		var _ Collector = (*RedisCollector)(nil)
	})
}
