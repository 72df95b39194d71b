package source

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"github.com/azorzini/itb-back/internal/model"
)

// FixtureSource is the offline PoolSource variant. It derives a stable
// base reserve and volume from the pool key and drifts them slowly
// with wall time, so repeated samples form a plausible series without
// any upstream.
type FixtureSource struct {
	now func() time.Time
}

func NewFixtureSource() *FixtureSource {
	return &FixtureSource{now: time.Now}
}

func (s *FixtureSource) FetchPoolState(ctx context.Context, poolKey string) (PoolState, error) {
	seed := keySeed(model.NormalizePoolKey(poolKey))

	baseReserve := 500_000 + float64(seed%9_500_000)
	hours := float64(s.now().UTC().Unix()) / 3600

	// Reserve oscillates a few percent around its base; volume grows
	// linearly at roughly 1% of reserve per hour.
	reserve := baseReserve * (1 + 0.03*math.Sin(hours/24+float64(seed%7)))
	volume := baseReserve * 0.01 * hours

	return PoolState{ReserveValue: reserve, CumulativeVolume: volume}, nil
}

func keySeed(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64()
}
