package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/azorzini/itb-back/internal/collector"
	"github.com/azorzini/itb-back/internal/config"
	"github.com/azorzini/itb-back/internal/metrics"
	"github.com/azorzini/itb-back/internal/source"
	"github.com/azorzini/itb-back/internal/storage"
	"github.com/azorzini/itb-back/internal/storage/memory"
	"github.com/azorzini/itb-back/internal/storage/postgres"
)

// app bundles the components every subcommand needs.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     storage.SnapshotStore
	collector *collector.Collector
	metrics   *metrics.Metrics
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if cfg.PgDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect store: %w", err)
		}
		if err := pgStore.EnsureSchema(ctx); err != nil {
			pgStore.Close()
			a.Close()
			return nil, err
		}
		a.store = pgStore
		a.closers = append(a.closers, pgStore.Close)
	} else {
		logger.Warn("no pg-dsn configured, snapshots are held in memory only")
		a.store = memory.NewStore()
	}

	src := source.New(cfg.SubgraphURL, logger)

	coll, err := collector.New(collector.Config{
		Pools:         cfg.Pools,
		BackfillHours: cfg.BackfillHours,
		FetchTimeout:  cfg.FetchTimeout,
	}, a.store, src, a.metrics, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.collector = coll

	return a, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
