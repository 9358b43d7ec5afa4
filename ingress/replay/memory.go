package replay

import (
	"context"
	"sync"
	"time"
)

/* MemoryStore is a single-process Store for development and tests.
 * Deployments with more than one container must use the Redis store;
 * a process-local map cannot dedup across containers.
 */
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record

	// best-effort cleanup cadence; no background goroutine required
	lastSweep     time.Time
	sweepInterval time.Duration
}

// NewMemoryStore creates an empty in-memory replay store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:       make(map[string]Record),
		lastSweep:     time.Now().UTC(),
		sweepInterval: time.Minute,
	}
}

// WithSweepInterval sets the interval between cleanup sweeps
func (s *MemoryStore) WithSweepInterval(interval time.Duration) *MemoryStore {
	if interval > 0 {
		s.sweepInterval = interval
	}
	return s
}

// CheckAndRecord implements Store. The write lock makes the
// check-and-insert atomic within the process.
func (s *MemoryStore) CheckAndRecord(_ context.Context, digest, sourceKey string, now time.Time, ttl time.Duration) (bool, error) {
	key := sourceKey + ":" + digest

	// Fast path: read lock for the already-seen case
	s.mu.RLock()
	record, exists := s.records[key]
	s.mu.RUnlock()

	if exists && !record.Expired(now) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring the write lock
	if record, ok := s.records[key]; ok && !record.Expired(now) {
		return false, nil
	}

	// Periodic cleanup to avoid unbounded growth
	if now.Sub(s.lastSweep) > s.sweepInterval {
		for k, r := range s.records {
			if r.Expired(now) {
				delete(s.records, k)
			}
		}
		s.lastSweep = now
	}

	s.records[key] = Record{
		Digest:      digest,
		SourceKey:   sourceKey,
		FirstSeenAt: now,
		ExpiresAt:   now.Add(ttl),
	}
	return true, nil
}

// Len returns the number of active (non-expired) records
func (s *MemoryStore) Len(now time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.records {
		if !r.Expired(now) {
			count++
		}
	}
	return count
}
