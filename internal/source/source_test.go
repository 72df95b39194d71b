package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewSelectsVariant(t *testing.T) {
	if _, ok := New("", nil).(*FixtureSource); !ok {
		t.Fatalf("expected fixture source without a url")
	}
	if _, ok := New("http://localhost/subgraph", nil).(*SubgraphSource); !ok {
		t.Fatalf("expected subgraph source with a url")
	}
}

func TestFixtureSourceDeterministicPerKey(t *testing.T) {
	ctx := context.Background()
	src := NewFixtureSource()

	a1, err := src.FetchPoolState(ctx, "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	a2, err := src.FetchPoolState(ctx, "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if a1.ReserveValue != a2.ReserveValue {
		t.Fatalf("casing changed the fixture state: %f != %f", a1.ReserveValue, a2.ReserveValue)
	}

	b, err := src.FetchPoolState(ctx, "0x0000000000000000000000000000000000000042")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if b.ReserveValue == a1.ReserveValue {
		t.Fatalf("distinct keys produced identical reserves")
	}
	if a1.ReserveValue < 0 || a1.CumulativeVolume < 0 {
		t.Fatalf("fixture produced negative values: %+v", a1)
	}
}

func TestSubgraphSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.Write([]byte(`{"data":{"pair":{"reserveUSD":"1500000.25","volumeUSD":"42000000.5"}}}`))
	}))
	defer server.Close()

	src := NewSubgraphSource(server.URL, nil)
	state, err := src.FetchPoolState(context.Background(), "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if state.ReserveValue != 1500000.25 || state.CumulativeVolume != 42000000.5 {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestSubgraphSourceUnknownPair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":{"pair":null}}`))
	}))
	defer server.Close()

	src := NewSubgraphSource(server.URL, nil)
	_, err := src.FetchPoolState(context.Background(), "0x0000000000000000000000000000000000000000")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for unknown pair, got %v", err)
	}
}

func TestSubgraphSourceHTTPError(t *testing.T) {
	// 404 is not retried by the retry client, so the failure is
	// reported immediately.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src := NewSubgraphSource(server.URL, nil)
	_, err := src.FetchPoolState(context.Background(), "0x0000000000000000000000000000000000000000")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on http error, got %v", err)
	}
}

func TestSubgraphSourceGraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"rate limited"}]}`))
	}))
	defer server.Close()

	src := NewSubgraphSource(server.URL, nil)
	_, err := src.FetchPoolState(context.Background(), "0x0000000000000000000000000000000000000000")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on graphql error, got %v", err)
	}
}
