// Package source provides the upstream pool-state capability: given a
// pool key, return its current reserve value and cumulative volume in
// quote currency, or report unavailability.
package source

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrUnavailable covers every way the upstream can fail for a pool in
// one cycle: transport errors, bad responses, and unknown pools alike.
// The collector treats them all as a skip.
var ErrUnavailable = errors.New("pool data source unavailable")

// PoolState is the current upstream view of one pool.
type PoolState struct {
	ReserveValue     float64
	CumulativeVolume float64
	BlockHeight      *uint64
}

// PoolSource fetches the current state of a pool.
type PoolSource interface {
	FetchPoolState(ctx context.Context, poolKey string) (PoolState, error)
}

// New selects the source variant once at construction: the live
// subgraph client when a URL is configured, otherwise the
// deterministic fixture.
func New(subgraphURL string, logger *zap.Logger) PoolSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if subgraphURL != "" {
		return NewSubgraphSource(subgraphURL, logger)
	}
	logger.Info("no subgraph url configured, using fixture pool source")
	return NewFixtureSource()
}
