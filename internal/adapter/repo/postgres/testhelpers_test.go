package postgres_test

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execCall struct {
	sql  string
	args []any
}

// fakePool implements postgres.PgxPool for unit tests without a database.
type fakePool struct {
	execCalls []execCall
	execErr   error
	rowScan   func(dest ...any) error
	queryRows pgx.Rows
	queryErr  error
}

func (f *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execCalls = append(f.execCalls, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakePool) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{scan: f.rowScan}
}

func (f *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return f.queryRows, f.queryErr
}

type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }
