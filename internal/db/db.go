// Package db provides shared database helpers for the run-scoped bulk
// writes every ingesting stage performs.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Pool abstracts the pgx connection pool so stores can be tested with
// pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// ReplaceRunRows atomically replaces a table's rows for one run id:
// existing rows for the run are deleted, then the new rows are COPY
// inserted in the same transaction. Re-running a stage with the same run
// id therefore overwrites instead of appending.
//
// The table's first column is assumed to be run_id and each row must
// include it.
func ReplaceRunRows(ctx context.Context, pool Pool, table string, columns []string, runID string, rows [][]any) (int64, error) {
	if len(columns) == 0 || columns[0] != "run_id" {
		return 0, eris.Errorf("db: table %s rows must lead with run_id", table)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: begin replace for %s", table)
	}
	defer tx.Rollback(ctx)

	delSQL := "DELETE FROM " + pgx.Identifier{table}.Sanitize() + " WHERE run_id = $1"
	if _, err := tx.Exec(ctx, delSQL, runID); err != nil {
		return 0, eris.Wrapf(err, "db: delete run rows from %s", table)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: commit replace for %s", table)
	}
	return n, nil
}
