package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/azorzini/itb-back/internal/api"
	"github.com/azorzini/itb-back/internal/apr"
	"github.com/azorzini/itb-back/internal/scheduler"
)

func main() {
	root := &cobra.Command{
		Use:          "sampler",
		Short:        "Liquidity pool snapshot sampler",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and HTTP API",
		RunE:  runServe,
	}
	registerFlags(serveCmd)
	root.AddCommand(serveCmd)

	collectCmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection cycle and exit",
		RunE:  runCollect,
	}
	registerFlags(collectCmd)
	root.AddCommand(collectCmd)

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "Seed synthetic history for pools without snapshots",
		RunE:  runBackfill,
	}
	registerFlags(backfillCmd)
	root.AddCommand(backfillCmd)

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete snapshots older than the retention window",
		RunE:  runPurge,
	}
	registerFlags(purgeCmd)
	root.AddCommand(purgeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func registerFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("pool", nil, "tracked pool addresses (comma-separated)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN (empty runs the in-memory store)")
	cmd.Flags().String("subgraph-url", "", "subgraph endpoint (empty runs the fixture source)")
	cmd.Flags().Duration("snapshot-interval", time.Hour, "time between collection cycles")
	cmd.Flags().Int("backfill-hours", 48, "synthetic history depth on first run")
	cmd.Flags().Int("retention-days", 90, "snapshot retention for the daily sweep")
	cmd.Flags().Duration("fetch-timeout", 10*time.Second, "per-pool upstream fetch timeout")
	cmd.Flags().String("listen", ":8080", "HTTP API listen address")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	sched := scheduler.New(scheduler.Config{
		SnapshotInterval: app.cfg.SnapshotInterval,
		RetentionDays:    app.cfg.RetentionDays,
	}, app.collector, app.logger)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	engine := apr.NewEngine(app.store, app.logger)
	server := api.NewServer(app.cfg.ListenAddr, app.store, engine, app.collector, sched, app.metrics, app.logger)

	app.logger.Info("sampler start",
		zap.Strings("pools", app.collector.TrackedPools()),
		zap.Duration("snapshot_interval", app.cfg.SnapshotInterval),
		zap.Int("retention_days", app.cfg.RetentionDays),
		zap.String("listen", app.cfg.ListenAddr),
	)

	if err := server.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runCollect(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.collector.TakeSnapshot(ctx)
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.collector.InitializeHistory(ctx)
}

func runPurge(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	deleted, err := app.collector.Cleanup(ctx, app.cfg.RetentionDays)
	if err != nil {
		return err
	}
	app.logger.Info("purge complete", zap.Int("deleted", deleted))
	return nil
}
