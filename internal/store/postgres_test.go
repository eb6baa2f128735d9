package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comp-benchmark/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetCachedBuild_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, fingerprint, rows, built_at, expires_at FROM build_cache`).
		WithArgs("unknown", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetCachedBuild(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedBuild_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rowsJSON, err := json.Marshal(sampleRows())
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM build_cache WHERE fingerprint = \$1 AND expires_at > \$2`).
		WithArgs("fp1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "fingerprint", "rows", "built_at", "expires_at"}).
			AddRow("id1", "fp1", rowsJSON, now, now.Add(time.Hour)))

	got, err := s.GetCachedBuild(context.Background(), "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "EN.SODE", got.Rows[0].FamilyCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCachedBuild(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO build_cache .* ON CONFLICT \(fingerprint\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "fp1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SetCachedBuild(context.Background(), "fp1", sampleRows(), time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM build_cache WHERE expires_at <= \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordAndListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO build_runs`).
		WithArgs(pgxmock.AnyArg(), "fp1", 18, true, "USD", created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.RecordRun(ctx, model.BuildRun{Fingerprint: "fp1", Rows: 18, CacheHit: true, Currency: "USD", CreatedAt: created})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)

	mock.ExpectQuery(`SELECT id, fingerprint, row_count, cache_hit, currency, created_at FROM build_runs`).
		WithArgs("", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "fingerprint", "row_count", "cache_hit", "currency", "created_at"}).
			AddRow(run.ID, "fp1", 18, true, "USD", created))

	runs, err := s.ListRuns(ctx, RunFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.True(t, runs[0].CacheHit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS build_cache`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
