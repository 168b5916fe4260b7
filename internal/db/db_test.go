package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestReplaceRunRows_DeleteThenCopy(t *testing.T) {
	mock := newMockPool(t)

	columns := []string{"run_id", "ad_id", "brand"}
	rows := [][]any{
		{"run-1", "ad1", "acme"},
		{"run-1", "ad2", "acme"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "ads" WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectCopyFrom(pgx.Identifier{"ads"}, columns).WillReturnResult(2)
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := ReplaceRunRows(context.Background(), mock, "ads", columns, "run-1", rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRunRows_EmptyRowsStillDeletes(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "ads" WHERE run_id = \$1`).
		WithArgs("run-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := ReplaceRunRows(context.Background(), mock, "ads", []string{"run_id", "ad_id"}, "run-2", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRunRows_RequiresRunIDColumn(t *testing.T) {
	mock := newMockPool(t)

	_, err := ReplaceRunRows(context.Background(), mock, "ads", []string{"ad_id", "run_id"}, "run-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run_id")
}

func TestReplaceRunRows_DeleteFailureRollsBack(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "ads"`).
		WithArgs("run-3").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := ReplaceRunRows(context.Background(), mock, "ads", []string{"run_id"}, "run-3", [][]any{{"run-3"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
