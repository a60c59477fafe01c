package invoices

import (
	"context"
	"database/sql"
	"sync"
)

type execCall struct {
	query string
	args  []any
}

type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

// fakeStore records every statement and answers with the configured result.
type fakeStore struct {
	mu     sync.Mutex
	calls  []execCall
	result fakeResult
	err    error
}

func (f *fakeStore) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, execCall{query: query, args: args})
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeStore) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	panic("not used by the mutation pipeline")
}

func (f *fakeStore) QueryRowContext(context.Context, string, ...any) *sql.Row {
	panic("not used by the mutation pipeline")
}

type fakeInvalidator struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return f.err
}
