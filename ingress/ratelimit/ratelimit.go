package ratelimit

import (
	"context"
	"time"
)

const (
	// DefaultLimitPerSecond matches the provider's own webhook sender,
	// which delivers at most 2 requests/second per source.
	DefaultLimitPerSecond = 2

	// Window is the fixed accounting window
	Window = time.Second
)

/* Limiter is the per-source request accounting gate
 * The limit check and the increment must be one atomic operation;
 * two handlers racing on the same window must never both admit the
 * request that exceeds the limit
 */
type Limiter interface {
	Allow(ctx context.Context, sourceKey string, now time.Time) (Decision, error)
}

// Decision is the outcome of one rate check
type Decision struct {
	Allowed bool

	// Remaining is the number of requests left in the active window
	Remaining int

	// RetryAfter is how long until the window rolls over. Set on rejection.
	RetryAfter time.Duration
}

/* WindowState represents one source's active accounting window
 * Count never exceeds the configured limit; the window rolls over
 * atomically with the check
 */
type WindowState struct {
	SourceKey   string
	WindowStart time.Time
	Count       int
}

// WindowStart truncates an instant to its accounting window
func WindowStart(now time.Time) time.Time {
	return now.Truncate(Window)
}

// UntilRollover returns the time left before the next window opens
func UntilRollover(now time.Time) time.Duration {
	return WindowStart(now).Add(Window).Sub(now)
}
