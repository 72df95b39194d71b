package apr

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/azorzini/itb-back/internal/model"
	"github.com/azorzini/itb-back/internal/storage/memory"
)

const pool = "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc"

func snapAt(ts time.Time, reserve, volume float64) model.Snapshot {
	return model.Snapshot{PoolKey: pool, Timestamp: ts, ReserveValue: reserve, CumulativeVolume: volume}
}

func TestComputeWindowAPRTooFewSnapshots(t *testing.T) {
	if _, ok := ComputeWindowAPR(nil, 24); ok {
		t.Fatalf("expected undefined for empty input")
	}
	one := []model.Snapshot{snapAt(time.Now(), 100, 100)}
	if _, ok := ComputeWindowAPR(one, 24); ok {
		t.Fatalf("expected undefined for a single snapshot")
	}
}

func TestComputeWindowAPRFlatVolume(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	snaps := []model.Snapshot{
		snapAt(t0, 1000, 5000),
		snapAt(t0.Add(24*time.Hour), 1000, 5000),
	}
	result, ok := ComputeWindowAPR(snaps, 24)
	if !ok {
		t.Fatalf("expected a result")
	}
	if result.APR != 0 {
		t.Fatalf("expected zero APR for flat volume, got %f", result.APR)
	}
}

func TestComputeWindowAPRReferenceScenario(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	snaps := []model.Snapshot{
		snapAt(t0, 1_000_000, 10_000_000),
		snapAt(t0.Add(24*time.Hour), 1_000_000, 20_000_000),
	}

	result, ok := ComputeWindowAPR(snaps, 24)
	if !ok {
		t.Fatalf("expected a result")
	}
	if math.Abs(result.FeesEarned-30_000) > 1e-6 {
		t.Fatalf("fees earned = %f, want 30000", result.FeesEarned)
	}
	if math.Abs(result.AverageReserve-1_000_000) > 1e-6 {
		t.Fatalf("average reserve = %f, want 1000000", result.AverageReserve)
	}
	if math.Abs(result.APR-1095) > 1e-6 {
		t.Fatalf("apr = %f, want 1095", result.APR)
	}
}

func TestComputeWindowAPRUnsortedInput(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	snaps := []model.Snapshot{
		snapAt(t0.Add(24*time.Hour), 1_000_000, 20_000_000),
		snapAt(t0, 1_000_000, 10_000_000),
	}
	result, ok := ComputeWindowAPR(snaps, 24)
	if !ok {
		t.Fatalf("expected a result")
	}
	if math.Abs(result.APR-1095) > 1e-6 {
		t.Fatalf("apr = %f, want 1095 regardless of input order", result.APR)
	}
}

func TestComputeWindowAPRClampsNegativeDelta(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	snaps := []model.Snapshot{
		snapAt(t0, 1000, 9000),
		snapAt(t0.Add(time.Hour), 1000, 100), // counter reset
	}
	result, ok := ComputeWindowAPR(snaps, 1)
	if !ok {
		t.Fatalf("expected a result")
	}
	if result.APR != 0 || result.FeesEarned != 0 {
		t.Fatalf("expected clamped zero, got %+v", result)
	}
}

func TestComputeWindowAPRMonotonicInVolumeDelta(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	prev := -1.0
	for _, delta := range []float64{0, 1000, 50_000, 2_000_000} {
		snaps := []model.Snapshot{
			snapAt(t0, 1_000_000, 10_000_000),
			snapAt(t0.Add(12*time.Hour), 1_000_000, 10_000_000+delta),
		}
		result, ok := ComputeWindowAPR(snaps, 12)
		if !ok {
			t.Fatalf("expected a result for delta %f", delta)
		}
		if result.APR < prev {
			t.Fatalf("apr not monotonic: delta %f gave %f < %f", delta, result.APR, prev)
		}
		prev = result.APR
	}
}

func TestComputeWindowAPRZeroReserve(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	snaps := []model.Snapshot{
		snapAt(t0, 0, 1000),
		snapAt(t0.Add(time.Hour), 0, 2000),
	}
	result, ok := ComputeWindowAPR(snaps, 1)
	if !ok {
		t.Fatalf("expected a result")
	}
	if result.APR != 0 {
		t.Fatalf("expected zero APR with zero reserve, got %f", result.APR)
	}
}

func TestEngineTimeSeries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := NewEngine(store, nil)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		snap := snapAt(base.Add(time.Duration(i)*time.Hour), 1_000_000, float64(10_000_000+i*100_000))
		if err := store.Upsert(ctx, snap); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	start := base
	end := base.Add(29 * time.Hour)
	points, err := engine.TimeSeries(ctx, pool, 24, start, end)
	if err != nil {
		t.Fatalf("time series: %v", err)
	}
	// Every anchor except the very first has a window of at least two
	// samples.
	if len(points) != 29 {
		t.Fatalf("expected 29 points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if !points[i-1].Timestamp.Before(points[i].Timestamp) {
			t.Fatalf("points not ordered by time at %d", i)
		}
	}
	for _, p := range points {
		if p.WindowHours != 24 || p.FeeRate != FeeRate {
			t.Fatalf("unexpected point metadata: %+v", p)
		}
		if p.APR < 0 {
			t.Fatalf("negative APR: %+v", p)
		}
	}
}

func TestEngineTimeSeriesEmptyPool(t *testing.T) {
	engine := NewEngine(memory.NewStore(), nil)
	points, err := engine.TimeSeries(context.Background(), pool, 24, time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("time series: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("expected no points, got %d", len(points))
	}
}

func TestEngineCurrent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	engine := NewEngine(store, nil)

	if _, ok, err := engine.Current(ctx, pool, 24); err != nil || ok {
		t.Fatalf("expected no point on empty store, ok=%v err=%v", ok, err)
	}

	now := time.Now().UTC()
	store.Upsert(ctx, snapAt(now.Add(-2*time.Hour), 1_000_000, 10_000_000))
	store.Upsert(ctx, snapAt(now.Add(-time.Minute), 1_000_000, 10_500_000))

	point, ok, err := engine.Current(ctx, pool, 24)
	if err != nil || !ok {
		t.Fatalf("expected a point, ok=%v err=%v", ok, err)
	}
	if point.APR <= 0 {
		t.Fatalf("expected positive APR, got %f", point.APR)
	}
	if point.ReserveValue != 1_000_000 {
		t.Fatalf("expected latest reserve on the point, got %f", point.ReserveValue)
	}
}
