package storage

import (
	"context"
	"errors"
	"time"

	"github.com/azorzini/itb-back/internal/model"
)

// ErrUnavailable marks failures of the persistence layer itself, as
// opposed to queries that match nothing. Callers can map it to a
// degraded status instead of a generic internal error.
var ErrUnavailable = errors.New("snapshot store unavailable")

// QueryOptions restricts and pages a history query.
type QueryOptions struct {
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// SnapshotStore is the persisted pool time series. Implementations
// normalize pool keys before key comparison and enforce exactly one
// record per (pool, timestamp).
type SnapshotStore interface {
	// Upsert inserts or replaces the record at (poolKey, timestamp).
	Upsert(ctx context.Context, snap model.Snapshot) error

	// UpsertBatch applies Upsert semantics in bulk and reports how
	// many candidates were written. Partial application on partial
	// failure is allowed; atomicity across keys is not guaranteed.
	UpsertBatch(ctx context.Context, snaps []model.Snapshot) (int, error)

	// Query returns snapshots for a pool ordered by timestamp
	// descending. No match yields an empty slice, not an error.
	Query(ctx context.Context, poolKey string, opts QueryOptions) ([]model.Snapshot, error)

	// Latest returns the most recent snapshot for a pool. The bool
	// is false when the pool has no data.
	Latest(ctx context.Context, poolKey string) (model.Snapshot, bool, error)

	// WindowSlice returns snapshots with timestamps in
	// [end - windowHours, end], ordered ascending. This is the exact
	// input contract of the APR engine.
	WindowSlice(ctx context.Context, poolKey string, end time.Time, windowHours int) ([]model.Snapshot, error)

	// PurgeOlderThan deletes snapshots across all pools older than
	// now - days and returns the count deleted.
	PurgeOlderThan(ctx context.Context, days int) (int, error)

	// Stats reports aggregate store contents.
	Stats(ctx context.Context) (model.StoreStats, error)
}
