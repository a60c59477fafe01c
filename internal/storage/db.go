// Package storage owns the SQL connection, schema and dashboard read queries
// for both PostgreSQL and SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ErrNotFound is returned by single-row lookups with no match.
var ErrNotFound = errors.New("not found")

// invalid_text_representation, raised for a key literal such as a non-UUID id.
const pqInvalidTextRepresentation = "22P02"

// IsInvalidKey reports whether err is PostgreSQL refusing a key literal of
// the wrong type. SQLite compares text and never raises it.
func IsInvalidKey(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqInvalidTextRepresentation
}

// ParseDialect accepts "postgres" (or "postgresql") and "sqlite".
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", s)
	}
}

// driverName is the database/sql driver registered for d.
func (d Dialect) driverName() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "postgres"
}

// Executor is the store collaborator. Statements use $N placeholders on
// every dialect.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is a connection pool that rewrites $N placeholders for SQLite.
type DB struct {
	sql     *sql.DB
	dialect Dialect
}

// Open connects to dsn and verifies the connection. For SQLite, dsn is a
// file path whose directory is created if missing.
func Open(ctx context.Context, dialect Dialect, dsn string) (*DB, error) {
	if dialect == DialectSQLite {
		if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	sqlDB, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// A single writer avoids SQLITE_BUSY under concurrent seed inserts.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{sql: sqlDB, dialect: dialect}, nil
}

// Dialect reports the SQL flavour of db.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.sql.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.sql.QueryContext(ctx, db.rebind(query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.sql.QueryRowContext(ctx, db.rebind(query), args...)
}

// PingContext checks the connection; used by readiness probes.
func (db *DB) PingContext(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.sql != nil {
		return db.sql.Close()
	}
	return nil
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

func (db *DB) rebind(query string) string {
	if db.dialect != DialectSQLite {
		return query
	}
	return Rebind(query)
}

// Rebind turns $N placeholders into SQLite's numbered ?N form.
func Rebind(query string) string {
	return placeholder.ReplaceAllString(query, "?$1")
}
