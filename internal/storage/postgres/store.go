package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azorzini/itb-back/internal/model"
	"github.com/azorzini/itb-back/internal/storage"
)

// Store provides Postgres persistence for pool snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the snapshots table and its uniqueness
// constraint. The primary key doubles as the compound ordering index
// for pool-equality + timestamp-range lookups.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pool_snapshots (
			pool_key TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			reserve_value DOUBLE PRECISION NOT NULL CHECK (reserve_value >= 0),
			cumulative_volume DOUBLE PRECISION NOT NULL CHECK (cumulative_volume >= 0),
			block_height BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (pool_key, ts)
		)
	`)
	if err != nil {
		return unavailable("ensure schema", err)
	}
	return nil
}

const upsertSQL = `
	INSERT INTO pool_snapshots (
		pool_key, ts, reserve_value, cumulative_volume, block_height, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, now(), now())
	ON CONFLICT (pool_key, ts)
	DO UPDATE SET
		reserve_value = EXCLUDED.reserve_value,
		cumulative_volume = EXCLUDED.cumulative_volume,
		block_height = EXCLUDED.block_height,
		updated_at = now()
`

func (s *Store) Upsert(ctx context.Context, snap model.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap = snap.Canonical()

	_, err := s.pool.Exec(ctx, upsertSQL,
		snap.PoolKey, snap.Timestamp, snap.ReserveValue, snap.CumulativeVolume, blockHeightArg(snap.BlockHeight))
	if err != nil {
		return unavailable("upsert snapshot", err)
	}
	return nil
}

func (s *Store) UpsertBatch(ctx context.Context, snaps []model.Snapshot) (int, error) {
	if len(snaps) == 0 {
		return 0, nil
	}

	var firstErr error
	batch := &pgx.Batch{}
	queued := 0
	for _, snap := range snaps {
		if err := snap.Validate(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		snap = snap.Canonical()
		batch.Queue(upsertSQL,
			snap.PoolKey, snap.Timestamp, snap.ReserveValue, snap.CumulativeVolume, blockHeightArg(snap.BlockHeight))
		queued++
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	written := 0
	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			if firstErr == nil {
				firstErr = unavailable("upsert batch", err)
			}
			continue
		}
		written++
	}
	return written, firstErr
}

func (s *Store) Query(ctx context.Context, poolKey string, opts storage.QueryOptions) ([]model.Snapshot, error) {
	sql := `
		SELECT pool_key, ts, reserve_value, cumulative_volume, block_height
		FROM pool_snapshots
		WHERE pool_key = $1
	`
	args := []any{model.NormalizePoolKey(poolKey)}
	if opts.StartTime != nil {
		args = append(args, opts.StartTime.UTC())
		sql += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if opts.EndTime != nil {
		args = append(args, opts.EndTime.UTC())
		sql += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	sql += " ORDER BY ts DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, unavailable("query snapshots", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func (s *Store) Latest(ctx context.Context, poolKey string) (model.Snapshot, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT pool_key, ts, reserve_value, cumulative_volume, block_height
		FROM pool_snapshots
		WHERE pool_key = $1
		ORDER BY ts DESC
		LIMIT 1
	`, model.NormalizePoolKey(poolKey))

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, unavailable("latest snapshot", err)
	}
	return snap, true, nil
}

func (s *Store) WindowSlice(ctx context.Context, poolKey string, end time.Time, windowHours int) ([]model.Snapshot, error) {
	start := end.Add(-time.Duration(windowHours) * time.Hour)
	rows, err := s.pool.Query(ctx, `
		SELECT pool_key, ts, reserve_value, cumulative_volume, block_height
		FROM pool_snapshots
		WHERE pool_key = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC
	`, model.NormalizePoolKey(poolKey), start.UTC(), end.UTC())
	if err != nil {
		return nil, unavailable("window slice", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func (s *Store) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM pool_snapshots WHERE ts < now() - make_interval(days => $1)`, days)
	if err != nil {
		return 0, unavailable("purge snapshots", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Stats(ctx context.Context) (model.StoreStats, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT count(*), count(DISTINCT pool_key),
			COALESCE(min(ts), 'epoch'::timestamptz), COALESCE(max(ts), 'epoch'::timestamptz)
		FROM pool_snapshots
	`)

	var stats model.StoreStats
	var oldest, newest time.Time
	if err := row.Scan(&stats.TotalSnapshots, &stats.PoolCount, &oldest, &newest); err != nil {
		return model.StoreStats{}, unavailable("store stats", err)
	}
	if stats.TotalSnapshots > 0 {
		stats.OldestSnapshot = oldest.UTC()
		stats.NewestSnapshot = newest.UTC()
	}
	return stats, nil
}

func scanSnapshots(rows pgx.Rows) ([]model.Snapshot, error) {
	out := []model.Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, unavailable("scan snapshot", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read snapshots", err)
	}
	return out, nil
}

func scanSnapshot(row pgx.Row) (model.Snapshot, error) {
	var snap model.Snapshot
	var height *int64
	if err := row.Scan(&snap.PoolKey, &snap.Timestamp, &snap.ReserveValue, &snap.CumulativeVolume, &height); err != nil {
		return model.Snapshot{}, err
	}
	snap.Timestamp = snap.Timestamp.UTC()
	if height != nil {
		h := uint64(*height)
		snap.BlockHeight = &h
	}
	return snap, nil
}

func blockHeightArg(height *uint64) *int64 {
	if height == nil {
		return nil
	}
	h := int64(*height)
	return &h
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", storage.ErrUnavailable, op, err)
}
