package replay

import (
	"context"
	"time"
)

/* Store is the dedup store behind replay detection
 * CheckAndRecord must be atomic: for concurrent calls with the same
 * (digest, sourceKey), exactly one caller may ever observe true
 */
type Store interface {
	// CheckAndRecord records the digest as seen and reports whether this
	// call was the first sighting within the TTL. False means replay.
	CheckAndRecord(ctx context.Context, digest, sourceKey string, now time.Time, ttl time.Duration) (bool, error)
}

/* Record represents one accepted signature digest
 * At most one Record may ever be inserted per (Digest, SourceKey) pair
 * within its TTL; the store enforces this, not the caller
 */
type Record struct {
	Digest      string
	SourceKey   string
	FirstSeenAt time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the record's TTL has lapsed at the given instant
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
