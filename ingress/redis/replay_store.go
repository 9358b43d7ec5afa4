package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

/* Redis implementation of replay.Store
 * SET NX PX is the atomic insert-if-absent: Redis arbitrates concurrent
 * callers, so two containers racing on the same digest can never both
 * observe a first sighting
 */

type ReplayStore struct {
	client *redis.Client
}

// NewReplayStore creates a replay store on an existing client
func NewReplayStore(client *redis.Client) *ReplayStore {
	return &ReplayStore{client: client}
}

// CheckAndRecord records the digest and reports whether this call was the
// first sighting within the TTL. The stored value is the first-seen
// timestamp, useful when inspecting keys by hand.
func (s *ReplayStore) CheckAndRecord(ctx context.Context, digest, sourceKey string, now time.Time, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%s:%s:%s", ReplayKeyPrefix, sourceKey, digest)

	inserted, err := s.client.SetNX(ctx, key, now.UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("recording digest: %w", err)
	}

	return inserted, nil
}
