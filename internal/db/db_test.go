package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "fx_rates", []string{"region", "rate"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock := newMock(t)
	mock.ExpectCopyFrom(pgx.Identifier{"fx_rates"}, []string{"region", "rate"}).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "fx_rates", []string{"region", "rate"}, [][]any{{"Japan", 0.0067}, {"Germany", 1.08}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock := newMock(t)
	mock.ExpectCopyFrom(pgx.Identifier{"comp", "fx_rates"}, []string{"region"}).WillReturnError(fmt.Errorf("permission denied"))

	_, err := CopyFrom(context.Background(), mock, "comp.fx_rates", []string{"region"}, [][]any{{"Japan"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO comp.fx_rates")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "level_map"`).WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectCopyFrom(pgx.Identifier{"level_map"}, []string{"internal_level", "external_token"}).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := ReplaceTable(context.Background(), mock, "level_map", []string{"internal_level", "external_token"},
		[][]any{{"L5 IC", "P5"}, {"L5.5 IC", nil}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_EmptyClearsOnly(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "family_aliases"`).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	n, err := ReplaceTable(context.Background(), mock, "family_aliases", []string{"from_code", "to_code"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_CopyFailsRollsBack(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "fx_rates"`).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"fx_rates"}, []string{"region", "rate"}).WillReturnError(fmt.Errorf("bad row"))
	mock.ExpectRollback()

	_, err := ReplaceTable(context.Background(), mock, "fx_rates", []string{"region", "rate"}, [][]any{{"Japan", 0.5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: replace fx_rates: COPY")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceTable_NoColumns(t *testing.T) {
	_, err := ReplaceTable(context.Background(), nil, "fx_rates", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns")
}

func TestMigrate(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS survey_percentiles`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, `"employees"`, identifier("employees").Sanitize())
	assert.Equal(t, `"comp"."employees"`, identifier("comp.employees").Sanitize())
}
