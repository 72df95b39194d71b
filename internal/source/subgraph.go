package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/azorzini/itb-back/internal/model"
)

// pairQuery pulls the quote-currency reserve and cumulative volume for
// one pair from a Uniswap-style subgraph.
const pairQuery = `query ($id: ID!) {
  pair(id: $id) {
    reserveUSD
    volumeUSD
  }
}`

// SubgraphSource is the live PoolSource variant backed by a GraphQL
// subgraph endpoint.
type SubgraphSource struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewSubgraphSource(url string, logger *zap.Logger) *SubgraphSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 3 * time.Second
	retryClient.HTTPClient.Timeout = 10 * time.Second
	retryClient.Logger = nil

	return &SubgraphSource{
		url:        url,
		httpClient: retryClient.StandardClient(),
		logger:     logger,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type pairResponse struct {
	Data struct {
		Pair *struct {
			ReserveUSD string `json:"reserveUSD"`
			VolumeUSD  string `json:"volumeUSD"`
		} `json:"pair"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (s *SubgraphSource) FetchPoolState(ctx context.Context, poolKey string) (PoolState, error) {
	payload, err := json.Marshal(graphQLRequest{
		Query:     pairQuery,
		Variables: map[string]any{"id": model.NormalizePoolKey(poolKey)},
	})
	if err != nil {
		return PoolState{}, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return PoolState{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return PoolState{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return PoolState{}, fmt.Errorf("%w: subgraph status %d: %s", ErrUnavailable, resp.StatusCode, body)
	}

	var parsed pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return PoolState{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(parsed.Errors) > 0 {
		return PoolState{}, fmt.Errorf("%w: subgraph error: %s", ErrUnavailable, parsed.Errors[0].Message)
	}
	if parsed.Data.Pair == nil {
		return PoolState{}, fmt.Errorf("%w: pair %s not found", ErrUnavailable, poolKey)
	}

	reserve, err := strconv.ParseFloat(parsed.Data.Pair.ReserveUSD, 64)
	if err != nil {
		return PoolState{}, fmt.Errorf("%w: parse reserveUSD: %v", ErrUnavailable, err)
	}
	volume, err := strconv.ParseFloat(parsed.Data.Pair.VolumeUSD, 64)
	if err != nil {
		return PoolState{}, fmt.Errorf("%w: parse volumeUSD: %v", ErrUnavailable, err)
	}

	s.logger.Debug("fetched pool state",
		zap.String("pool", poolKey),
		zap.Float64("reserve_usd", reserve),
		zap.Float64("volume_usd", volume),
	)

	return PoolState{ReserveValue: reserve, CumulativeVolume: volume}, nil
}
