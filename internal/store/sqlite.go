package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/comp-benchmark/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS build_cache (
	id          TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	rows        TEXT NOT NULL,
	built_at    DATETIME NOT NULL,
	expires_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS build_runs (
	id          TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	row_count   INTEGER NOT NULL DEFAULT 0,
	cache_hit   INTEGER NOT NULL DEFAULT 0,
	currency    TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_build_cache_expires_at ON build_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_build_runs_created_at ON build_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_build_runs_fingerprint ON build_runs(fingerprint);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetCachedBuild returns the unexpired table stored under fingerprint, or
// nil when there is none.
func (s *SQLiteStore) GetCachedBuild(ctx context.Context, fingerprint string) (*model.CachedBuild, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, fingerprint, rows, built_at, expires_at FROM build_cache
		 WHERE fingerprint = ? AND expires_at > ?`,
		fingerprint, s.now(),
	)

	var cb model.CachedBuild
	var rowsJSON string
	err := row.Scan(&cb.ID, &cb.Fingerprint, &rowsJSON, &cb.BuiltAt, &cb.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached build")
	}
	if err := json.Unmarshal([]byte(rowsJSON), &cb.Rows); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached rows")
	}
	return &cb, nil
}

// SetCachedBuild stores rows under fingerprint, replacing any earlier entry.
func (s *SQLiteStore) SetCachedBuild(ctx context.Context, fingerprint string, rows []model.BenchmarkRow, ttl time.Duration) error {
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rows")
	}
	now := s.now()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO build_cache (id, fingerprint, rows, built_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET rows = excluded.rows, built_at = excluded.built_at, expires_at = excluded.expires_at`,
		uuid.New().String(), fingerprint, string(rowsJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached build")
}

// DeleteExpired removes expired cache entries and returns how many went.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM build_cache WHERE expires_at <= ?`, s.now())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired builds")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// RecordRun appends a run to the log. ID and CreatedAt are filled when unset.
func (s *SQLiteStore) RecordRun(ctx context.Context, run model.BuildRun) (*model.BuildRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_runs (id, fingerprint, row_count, cache_hit, currency, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Fingerprint, run.Rows, run.CacheHit, run.Currency, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.BuildRun, error) {
	query := `SELECT id, fingerprint, row_count, cache_hit, currency, created_at FROM build_runs WHERE 1=1`
	var args []any

	if filter.Fingerprint != "" {
		query += ` AND fingerprint = ?`
		args = append(args, filter.Fingerprint)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.BuildRun
	for rows.Next() {
		var r model.BuildRun
		if err := rows.Scan(&r.ID, &r.Fingerprint, &r.Rows, &r.CacheHit, &r.Currency, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
