package ratelimit

import (
	"context"
	"sync"
	"time"
)

// maxTrackedKeys caps the number of tracked sources to prevent memory
// exhaustion from attackers rotating source keys.
const maxTrackedKeys = 4096

/* MemoryLimiter is a single-process Limiter for development and tests.
 * Deployments with more than one container must use the Redis limiter;
 * a process-local counter cannot account across containers.
 *
 * The tracked-key cap bounds memory against source-key rotation, not
 * accounting accuracy: when the cap fills within a single window, the
 * oldest-window entry is evicted and that source's count resets.
 */
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	windows map[string]*WindowState
}

// NewMemoryLimiter creates a limiter admitting limitPerSecond requests
// per source per window. Non-positive limits fall back to the default.
func NewMemoryLimiter(limitPerSecond int) *MemoryLimiter {
	if limitPerSecond <= 0 {
		limitPerSecond = DefaultLimitPerSecond
	}
	return &MemoryLimiter{
		limit:   limitPerSecond,
		windows: make(map[string]*WindowState),
	}
}

// Allow implements Limiter. The mutex makes the check-and-increment
// atomic within the process.
func (l *MemoryLimiter) Allow(_ context.Context, sourceKey string, now time.Time) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Prune stale windows when approaching the cap
	if len(l.windows) >= maxTrackedKeys {
		for k, w := range l.windows {
			if now.Sub(w.WindowStart) >= Window {
				delete(l.windows, k)
			}
		}
		// Hard eviction if still at cap, oldest window first, so a live
		// window only resets once everything older is gone
		for len(l.windows) >= maxTrackedKeys {
			var oldestKey string
			var oldestStart time.Time
			for k, w := range l.windows {
				if oldestKey == "" || w.WindowStart.Before(oldestStart) {
					oldestKey = k
					oldestStart = w.WindowStart
				}
			}
			delete(l.windows, oldestKey)
		}
	}

	start := WindowStart(now)

	w, ok := l.windows[sourceKey]
	if !ok || w.WindowStart.Before(start) {
		l.windows[sourceKey] = &WindowState{
			SourceKey:   sourceKey,
			WindowStart: start,
			Count:       1,
		}
		return Decision{Allowed: true, Remaining: l.limit - 1}, nil
	}

	if w.Count >= l.limit {
		return Decision{RetryAfter: UntilRollover(now)}, nil
	}

	w.Count++
	return Decision{Allowed: true, Remaining: l.limit - w.Count}, nil
}
