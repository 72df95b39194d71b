package collector

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/azorzini/itb-back/internal/model"
)

const (
	// reservePerturbation bounds the multiplicative jitter applied to
	// synthesized historical reserves.
	reservePerturbation = 0.05

	// volumeDecrementRate is the share of the live cumulative volume
	// subtracted per hour going back in time.
	volumeDecrementRate = 0.002
)

// InitializeHistory seeds hourly history for every tracked pool that
// has no snapshots yet, so APR windows are computable right after
// first deployment. The history is synthesized from one live read,
// not reconstructed: reserves get a small bounded perturbation and the
// volume counter is walked back linearly. Pools that already have data
// are left untouched.
func (c *Collector) InitializeHistory(ctx context.Context) error {
	rng := rand.New(rand.NewSource(c.now().UnixNano()))

	for _, pool := range c.cfg.Pools {
		_, exists, err := c.store.Latest(ctx, pool)
		if err != nil {
			return fmt.Errorf("check history for %s: %w", pool, err)
		}
		if exists {
			c.logger.Debug("pool already has history", zap.String("pool", pool))
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
		state, err := c.src.FetchPoolState(fetchCtx, pool)
		cancel()
		if err != nil {
			c.logger.Warn("backfill skipped, upstream unavailable", zap.String("pool", pool), zap.Error(err))
			continue
		}

		batch := c.synthesizeHistory(pool, state.ReserveValue, state.CumulativeVolume, rng)
		written, err := c.store.UpsertBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("persist backfill for %s: %w", pool, err)
		}
		c.metrics.SnapshotsWritten.Add(float64(written))
		c.logger.Info("backfilled synthetic history",
			zap.String("pool", pool),
			zap.Int("hours", c.cfg.BackfillHours),
			zap.Int("written", written),
		)
	}
	return nil
}

// synthesizeHistory builds one sample per past hour, oldest first.
func (c *Collector) synthesizeHistory(pool string, liveReserve, liveVolume float64, rng *rand.Rand) []model.Snapshot {
	now := c.now().UTC().Truncate(time.Second)
	decrement := liveVolume * volumeDecrementRate

	batch := make([]model.Snapshot, 0, c.cfg.BackfillHours)
	for i := c.cfg.BackfillHours; i >= 1; i-- {
		jitter := 1 + (rng.Float64()*2-1)*reservePerturbation
		volume := liveVolume - float64(i)*decrement
		if volume < 0 {
			volume = 0
		}
		batch = append(batch, model.Snapshot{
			PoolKey:          pool,
			Timestamp:        now.Add(-time.Duration(i) * time.Hour),
			ReserveValue:     liveReserve * jitter,
			CumulativeVolume: volume,
		})
	}
	return batch
}
