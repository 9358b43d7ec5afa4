package metrics

import (
	"context"
	"time"
)

// Snapshot represents the current state of the trust boundary stores.
type Snapshot struct {
	// ReplayBacklog is the number of delivery digests currently retained
	ReplayBacklog int64 `json:"replay_backlog"`

	// ActiveRateWindows is the number of live per-source counting windows
	ActiveRateWindows int64 `json:"active_rate_windows"`

	// Timestamp when the snapshot was collected
	Timestamp time.Time `json:"timestamp"`
}

// Collector defines the interface for collecting store state.
type Collector interface {
	// Collect gathers the current snapshot from the stores
	Collect(ctx context.Context) (Snapshot, error)

	// GetReplayBacklog returns the number of retained delivery digests
	GetReplayBacklog(ctx context.Context) (int64, error)

	// GetActiveRateWindows returns the number of live counting windows
	GetActiveRateWindows(ctx context.Context) (int64, error)
}
