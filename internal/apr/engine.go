// Package apr derives annualized yield estimates from stored pool
// snapshots over trailing time windows.
package apr

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/azorzini/itb-back/internal/model"
	"github.com/azorzini/itb-back/internal/storage"
)

const (
	// FeeRate is the fixed share of traded volume accrued as fees.
	FeeRate = 0.003

	// HoursPerYear annualizes a window-sized fee rate.
	HoursPerYear = 8760
)

// WindowResult is the outcome of a single window computation.
type WindowResult struct {
	APR            float64
	FeesEarned     float64
	AverageReserve float64
}

// ComputeWindowAPR estimates the annualized yield over one window. It
// needs at least two snapshots; the bool is false when the window is
// undefined. The input is sorted here rather than trusted, and a
// negative volume delta (counter reset, out-of-order data) is clamped
// to zero instead of producing a negative-fee artifact.
func ComputeWindowAPR(snaps []model.Snapshot, windowHours int) (WindowResult, bool) {
	if len(snaps) < 2 || windowHours <= 0 {
		return WindowResult{}, false
	}

	ordered := make([]model.Snapshot, len(snaps))
	copy(ordered, snaps)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	earliest := ordered[0]
	latest := ordered[len(ordered)-1]

	volumeDelta := latest.CumulativeVolume - earliest.CumulativeVolume
	if volumeDelta < 0 {
		volumeDelta = 0
	}
	feesEarned := volumeDelta * FeeRate

	var reserveSum float64
	for _, snap := range ordered {
		reserveSum += snap.ReserveValue
	}
	averageReserve := reserveSum / float64(len(ordered))

	var apr float64
	if averageReserve > 0 {
		apr = (feesEarned / averageReserve) * (HoursPerYear / float64(windowHours)) * 100
	}
	if apr < 0 {
		apr = 0
	}

	return WindowResult{APR: apr, FeesEarned: feesEarned, AverageReserve: averageReserve}, true
}

// Engine computes APR series by pulling window slices from the store.
type Engine struct {
	store  storage.SnapshotStore
	logger *zap.Logger
}

func NewEngine(store storage.SnapshotStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger}
}

// TimeSeries emits one APR point per snapshot in [start, end] whose
// trailing window holds at least two samples, ordered by time.
func (e *Engine) TimeSeries(ctx context.Context, poolKey string, windowHours int, start, end time.Time) ([]model.APRPoint, error) {
	anchors, err := e.store.Query(ctx, poolKey, storage.QueryOptions{StartTime: &start, EndTime: &end})
	if err != nil {
		return nil, err
	}

	// Query returns descending; walk oldest-first.
	points := make([]model.APRPoint, 0, len(anchors))
	for i := len(anchors) - 1; i >= 0; i-- {
		anchor := anchors[i]
		point, ok, err := e.windowPoint(ctx, poolKey, windowHours, anchor.Timestamp, anchor.ReserveValue)
		if err != nil {
			return nil, err
		}
		if ok {
			points = append(points, point)
		}
	}
	return points, nil
}

// Current computes the window anchored at now. The bool is false when
// the window holds fewer than two samples.
func (e *Engine) Current(ctx context.Context, poolKey string, windowHours int) (model.APRPoint, bool, error) {
	now := time.Now().UTC()
	latest, ok, err := e.store.Latest(ctx, poolKey)
	if err != nil {
		return model.APRPoint{}, false, err
	}
	var reserve float64
	if ok {
		reserve = latest.ReserveValue
	}
	return e.windowPoint(ctx, poolKey, windowHours, now, reserve)
}

func (e *Engine) windowPoint(ctx context.Context, poolKey string, windowHours int, end time.Time, reserve float64) (model.APRPoint, bool, error) {
	slice, err := e.store.WindowSlice(ctx, poolKey, end, windowHours)
	if err != nil {
		return model.APRPoint{}, false, err
	}
	result, ok := ComputeWindowAPR(slice, windowHours)
	if !ok {
		return model.APRPoint{}, false, nil
	}
	return model.APRPoint{
		Timestamp:    end,
		APR:          result.APR,
		WindowHours:  windowHours,
		ReserveValue: reserve,
		FeesEarned:   result.FeesEarned,
		FeeRate:      FeeRate,
	}, true, nil
}
