package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrNegativeValue rejects snapshot candidates carrying a negative
// reserve or volume before they reach storage.
var ErrNegativeValue = errors.New("snapshot value must be non-negative")

// Snapshot is one timestamped sample of a pool's state.
type Snapshot struct {
	PoolKey          string    `json:"pool_key"`
	Timestamp        time.Time `json:"timestamp"`
	ReserveValue     float64   `json:"reserve_value"`
	CumulativeVolume float64   `json:"cumulative_volume"`
	BlockHeight      *uint64   `json:"block_height,omitempty"`
}

// Validate checks the non-negativity invariants. It does not check
// volume monotonicity; the APR math tolerates resets defensively.
func (s Snapshot) Validate() error {
	if s.ReserveValue < 0 {
		return fmt.Errorf("reserve_value %f: %w", s.ReserveValue, ErrNegativeValue)
	}
	if s.CumulativeVolume < 0 {
		return fmt.Errorf("cumulative_volume %f: %w", s.CumulativeVolume, ErrNegativeValue)
	}
	return nil
}

// Canonical returns a copy with the pool key normalized and the
// timestamp truncated to second precision in UTC.
func (s Snapshot) Canonical() Snapshot {
	s.PoolKey = NormalizePoolKey(s.PoolKey)
	s.Timestamp = s.Timestamp.UTC().Truncate(time.Second)
	return s
}

// StoreStats summarizes the store contents across all pools.
type StoreStats struct {
	TotalSnapshots int       `json:"total_snapshots"`
	PoolCount      int       `json:"pool_count"`
	OldestSnapshot time.Time `json:"oldest_snapshot"`
	NewestSnapshot time.Time `json:"newest_snapshot"`
}
