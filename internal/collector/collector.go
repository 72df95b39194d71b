// Package collector keeps the snapshot store populated: live sampling
// cycles, first-run backfill, and the retention sweep.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/azorzini/itb-back/internal/metrics"
	"github.com/azorzini/itb-back/internal/model"
	"github.com/azorzini/itb-back/internal/source"
	"github.com/azorzini/itb-back/internal/storage"
)

// Config holds collection settings.
type Config struct {
	Pools         []string
	BackfillHours int
	FetchTimeout  time.Duration
}

// Collector orchestrates sampling for a fixed set of tracked pools.
type Collector struct {
	cfg     Config
	store   storage.SnapshotStore
	src     source.PoolSource
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(cfg Config, store storage.SnapshotStore, src source.PoolSource, m *metrics.Metrics, logger *zap.Logger) (*Collector, error) {
	if len(cfg.Pools) == 0 {
		return nil, fmt.Errorf("at least one tracked pool is required")
	}
	if cfg.BackfillHours <= 0 {
		cfg.BackfillHours = 48
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}

	pools := make([]string, 0, len(cfg.Pools))
	for _, p := range cfg.Pools {
		pools = append(pools, model.NormalizePoolKey(p))
	}
	cfg.Pools = pools

	return &Collector{
		cfg:     cfg,
		store:   store,
		src:     src,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}, nil
}

// TakeSnapshot runs one collection cycle: fetch every tracked pool
// concurrently, then persist the staged candidates as a single batch.
// A failed fetch skips that pool for this cycle only; a store write
// failure fails the cycle and is retried by the next scheduled tick.
func (c *Collector) TakeSnapshot(ctx context.Context) error {
	started := c.now()
	sampledAt := started.UTC().Truncate(time.Second)

	var mu sync.Mutex
	var wg sync.WaitGroup
	staged := make([]model.Snapshot, 0, len(c.cfg.Pools))

	for _, pool := range c.cfg.Pools {
		wg.Add(1)
		go func(pool string) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
			defer cancel()

			state, err := c.src.FetchPoolState(fetchCtx, pool)
			if err != nil {
				c.metrics.FetchFailures.WithLabelValues(pool).Inc()
				c.logger.Warn("skip pool for this cycle", zap.String("pool", pool), zap.Error(err))
				return
			}

			mu.Lock()
			staged = append(staged, model.Snapshot{
				PoolKey:          pool,
				Timestamp:        sampledAt,
				ReserveValue:     state.ReserveValue,
				CumulativeVolume: state.CumulativeVolume,
				BlockHeight:      state.BlockHeight,
			})
			mu.Unlock()
		}(pool)
	}
	wg.Wait()

	if len(staged) == 0 {
		c.logger.Warn("no pool produced a snapshot this cycle", zap.Int("pools", len(c.cfg.Pools)))
		c.metrics.CycleDuration.Observe(time.Since(started).Seconds())
		return nil
	}

	written, err := c.store.UpsertBatch(ctx, staged)
	c.metrics.SnapshotsWritten.Add(float64(written))
	c.metrics.CycleDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		c.metrics.CycleFailures.Inc()
		return fmt.Errorf("persist cycle batch: %w", err)
	}

	c.logger.Info("collection cycle complete",
		zap.Int("pools", len(c.cfg.Pools)),
		zap.Int("sampled", len(staged)),
		zap.Int("written", written),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// Cleanup delegates to the store's retention sweep.
func (c *Collector) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	deleted, err := c.store.PurgeOlderThan(ctx, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("purge snapshots: %w", err)
	}
	c.metrics.PurgedSnapshots.Add(float64(deleted))
	c.logger.Info("retention sweep complete",
		zap.Int("retention_days", retentionDays),
		zap.Int("deleted", deleted),
	)
	return deleted, nil
}

// PoolStatus reports the latest known snapshot time for one pool.
type PoolStatus struct {
	PoolKey        string     `json:"pool_key"`
	LatestSnapshot *time.Time `json:"latest_snapshot,omitempty"`
}

// Status reports per-pool latest snapshot times plus aggregate store
// statistics.
type Status struct {
	Pools []PoolStatus     `json:"pools"`
	Store model.StoreStats `json:"store"`
}

func (c *Collector) Status(ctx context.Context) (Status, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}

	status := Status{Store: stats, Pools: make([]PoolStatus, 0, len(c.cfg.Pools))}
	for _, pool := range c.cfg.Pools {
		entry := PoolStatus{PoolKey: pool}
		latest, ok, err := c.store.Latest(ctx, pool)
		if err != nil {
			return Status{}, err
		}
		if ok {
			ts := latest.Timestamp
			entry.LatestSnapshot = &ts
		}
		status.Pools = append(status.Pools, entry)
	}
	return status, nil
}

// TrackedPools returns the canonical tracked pool keys.
func (c *Collector) TrackedPools() []string {
	out := make([]string, len(c.cfg.Pools))
	copy(out, c.cfg.Pools)
	return out
}
