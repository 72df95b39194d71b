// Package api is the HTTP boundary over the sampler core: raw history
// and latest-snapshot queries, derived APR series, the manual
// collection trigger, and status reporting.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/azorzini/itb-back/internal/apr"
	"github.com/azorzini/itb-back/internal/collector"
	"github.com/azorzini/itb-back/internal/metrics"
	"github.com/azorzini/itb-back/internal/scheduler"
	"github.com/azorzini/itb-back/internal/storage"
)

// Server wires the core components behind JSON endpoints.
type Server struct {
	store     storage.SnapshotStore
	engine    *apr.Engine
	collector *collector.Collector
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
	web       *http.Server
}

func NewServer(addr string, store storage.SnapshotStore, engine *apr.Engine, coll *collector.Collector, sched *scheduler.Scheduler, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:     store,
		engine:    engine,
		collector: coll,
		scheduler: sched,
		logger:    logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }).Methods(http.MethodGet)
	r.HandleFunc("/pools/{address}/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/pools/{address}/latest", s.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/pools/{address}/apr", s.handleAPR).Methods(http.MethodGet)
	r.HandleFunc("/collect", s.handleCollect).Methods(http.MethodPost)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	s.web = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.web.Handler
}

// Run serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	closed := make(chan error, 1)
	go func() {
		closed <- s.web.ListenAndServe()
	}()

	s.logger.Info("api listening", zap.String("addr", s.web.Addr))

	select {
	case err := <-closed:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.web.Shutdown(shutdownCtx)
		return ctx.Err()
	}
}
