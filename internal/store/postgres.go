package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/comp-benchmark/internal/db"
	"github.com/sells-group/comp-benchmark/internal/model"
)

// PostgresStore implements Store on a shared Postgres pool, next to the
// source tables.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// NewPostgres opens a pool and wraps it in a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	s := NewPostgresWithPool(pool)
	s.closeFn = pool.Close
	return s, nil
}

// NewPostgresWithPool wraps an existing pool. Close leaves the pool open.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Pool returns the underlying pool so the table source can share it.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS build_cache (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	fingerprint TEXT NOT NULL UNIQUE,
	rows        JSONB NOT NULL,
	built_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS build_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	fingerprint TEXT NOT NULL,
	row_count   INTEGER NOT NULL DEFAULT 0,
	cache_hit   BOOLEAN NOT NULL DEFAULT false,
	currency    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_build_cache_expires_at ON build_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_build_runs_created_at ON build_runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_build_runs_fingerprint ON build_runs(fingerprint);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetCachedBuild(ctx context.Context, fingerprint string) (*model.CachedBuild, error) {
	var cb model.CachedBuild
	var rowsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, fingerprint, rows, built_at, expires_at FROM build_cache WHERE fingerprint = $1 AND expires_at > $2`,
		fingerprint, s.now(),
	).Scan(&cb.ID, &cb.Fingerprint, &rowsJSON, &cb.BuiltAt, &cb.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached build")
	}
	if err := json.Unmarshal(rowsJSON, &cb.Rows); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached rows")
	}
	return &cb, nil
}

func (s *PostgresStore) SetCachedBuild(ctx context.Context, fingerprint string, rows []model.BenchmarkRow, ttl time.Duration) error {
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal rows")
	}
	now := s.now()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO build_cache (id, fingerprint, rows, built_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (fingerprint) DO UPDATE SET rows = EXCLUDED.rows, built_at = EXCLUDED.built_at, expires_at = EXCLUDED.expires_at`,
		uuid.New().String(), fingerprint, rowsJSON, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached build")
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM build_cache WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired builds")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run model.BuildRun) (*model.BuildRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO build_runs (id, fingerprint, row_count, cache_hit, currency, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Fingerprint, run.Rows, run.CacheHit, run.Currency, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.BuildRun, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, fingerprint, row_count, cache_hit, currency, created_at FROM build_runs
		 WHERE ($1 = '' OR fingerprint = $1)
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		filter.Fingerprint, limit, max(filter.Offset, 0),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.BuildRun
	for rows.Next() {
		var r model.BuildRun
		if err := rows.Scan(&r.ID, &r.Fingerprint, &r.Rows, &r.CacheHit, &r.Currency, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
