// Package memory provides an in-process SnapshotStore used when no
// Postgres DSN is configured and as the backend for tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/azorzini/itb-back/internal/model"
	"github.com/azorzini/itb-back/internal/storage"
)

// Store keeps snapshots in a per-pool map keyed by unix timestamp.
type Store struct {
	mu    sync.RWMutex
	pools map[string]map[int64]model.Snapshot
}

func NewStore() *Store {
	return &Store{pools: make(map[string]map[int64]model.Snapshot)}
}

func (s *Store) Upsert(ctx context.Context, snap model.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap = snap.Canonical()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(snap)
	return nil
}

func (s *Store) UpsertBatch(ctx context.Context, snaps []model.Snapshot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var written int
	var firstErr error
	for _, snap := range snaps {
		if err := snap.Validate(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.put(snap.Canonical())
		written++
	}
	return written, firstErr
}

// put assumes the caller holds the write lock and snap is canonical.
func (s *Store) put(snap model.Snapshot) {
	series := s.pools[snap.PoolKey]
	if series == nil {
		series = make(map[int64]model.Snapshot)
		s.pools[snap.PoolKey] = series
	}
	series[snap.Timestamp.Unix()] = snap
}

func (s *Store) Query(ctx context.Context, poolKey string, opts storage.QueryOptions) ([]model.Snapshot, error) {
	snaps := s.sorted(poolKey, opts.StartTime, opts.EndTime)

	// Descending for history queries.
	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(snaps) {
			return []model.Snapshot{}, nil
		}
		snaps = snaps[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(snaps) {
		snaps = snaps[:opts.Limit]
	}
	return snaps, nil
}

func (s *Store) Latest(ctx context.Context, poolKey string) (model.Snapshot, bool, error) {
	snaps := s.sorted(poolKey, nil, nil)
	if len(snaps) == 0 {
		return model.Snapshot{}, false, nil
	}
	return snaps[len(snaps)-1], true, nil
}

func (s *Store) WindowSlice(ctx context.Context, poolKey string, end time.Time, windowHours int) ([]model.Snapshot, error) {
	start := end.Add(-time.Duration(windowHours) * time.Hour)
	return s.sorted(poolKey, &start, &end), nil
}

func (s *Store) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int
	for key, series := range s.pools {
		for ts, snap := range series {
			if snap.Timestamp.Before(cutoff) {
				delete(series, ts)
				deleted++
			}
		}
		if len(series) == 0 {
			delete(s.pools, key)
		}
	}
	return deleted, nil
}

func (s *Store) Stats(ctx context.Context) (model.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.StoreStats{PoolCount: len(s.pools)}
	for _, series := range s.pools {
		for _, snap := range series {
			stats.TotalSnapshots++
			if stats.OldestSnapshot.IsZero() || snap.Timestamp.Before(stats.OldestSnapshot) {
				stats.OldestSnapshot = snap.Timestamp
			}
			if snap.Timestamp.After(stats.NewestSnapshot) {
				stats.NewestSnapshot = snap.Timestamp
			}
		}
	}
	return stats, nil
}

// sorted returns the pool's snapshots ascending by timestamp,
// restricted to the closed interval [start, end] when given.
func (s *Store) sorted(poolKey string, start, end *time.Time) []model.Snapshot {
	key := model.NormalizePoolKey(poolKey)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Snapshot, 0, len(s.pools[key]))
	for _, snap := range s.pools[key] {
		if start != nil && snap.Timestamp.Before(start.UTC().Truncate(time.Second)) {
			continue
		}
		if end != nil && snap.Timestamp.After(end.UTC().Truncate(time.Second)) {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
