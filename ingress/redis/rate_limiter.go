package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/menu-planning/formgate/ingress/ratelimit"
)

/* Redis implementation of ratelimit.Limiter
 * Fixed one-second windows, keyed by source and unix second. The count
 * and the limit check happen in one server-side script, so concurrent
 * handlers across containers share a single atomic counter
 */

// Window keys outlive their second only long enough to absorb clock skew
// between containers.
const windowKeyTTL = 2 * time.Second

// incrScript increments the window counter, arming the expiry on first
// touch. Returns the post-increment count.
const incrScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`

type RateLimiter struct {
	client *redis.Client
	limit  int
}

// NewRateLimiter creates a limiter on an existing client admitting
// limitPerSecond requests per source per window. Non-positive limits
// fall back to the default.
func NewRateLimiter(client *redis.Client, limitPerSecond int) *RateLimiter {
	if limitPerSecond <= 0 {
		limitPerSecond = ratelimit.DefaultLimitPerSecond
	}
	return &RateLimiter{
		client: client,
		limit:  limitPerSecond,
	}
}

// Allow implements ratelimit.Limiter
func (l *RateLimiter) Allow(ctx context.Context, sourceKey string, now time.Time) (ratelimit.Decision, error) {
	key := fmt.Sprintf("%s:%s:%d", RateKeyPrefix, sourceKey, now.Unix())

	count, err := l.client.Eval(ctx, incrScript, []string{key}, windowKeyTTL.Milliseconds()).Int()
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("counting window: %w", err)
	}

	if count > l.limit {
		return ratelimit.Decision{RetryAfter: ratelimit.UntilRollover(now)}, nil
	}

	return ratelimit.Decision{Allowed: true, Remaining: l.limit - count}, nil
}
