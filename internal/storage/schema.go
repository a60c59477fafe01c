package storage

import (
	"context"
	"fmt"
)

// Table kinds in seed order.
const (
	KindUsers     = "users"
	KindInvoices  = "invoices"
	KindCustomers = "customers"
	KindRevenue   = "revenue"
)

// Kinds lists every table in the order the seed loader processes them.
func Kinds() []string {
	return []string{KindUsers, KindInvoices, KindCustomers, KindRevenue}
}

// sqliteUUID generates a random v4-shaped id as a column default.
const sqliteUUID = `(lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-4' ||
	substr(hex(randomblob(2)), 2) || '-' || substr('89ab', 1 + (abs(random()) % 4), 1) ||
	substr(hex(randomblob(2)), 2) || '-' || hex(randomblob(6))))`

var postgresDDL = map[string]string{
	KindUsers: `CREATE TABLE IF NOT EXISTS users (
		id UUID DEFAULT uuid_generate_v4() PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL
	)`,
	KindInvoices: `CREATE TABLE IF NOT EXISTS invoices (
		id UUID DEFAULT uuid_generate_v4() PRIMARY KEY,
		customer_id UUID NOT NULL,
		amount INT NOT NULL,
		status VARCHAR(255) NOT NULL,
		date DATE NOT NULL
	)`,
	KindCustomers: `CREATE TABLE IF NOT EXISTS customers (
		id UUID DEFAULT uuid_generate_v4() PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		image_url VARCHAR(255) NOT NULL
	)`,
	KindRevenue: `CREATE TABLE IF NOT EXISTS revenue (
		month VARCHAR(4) NOT NULL UNIQUE,
		revenue INT NOT NULL
	)`,
}

var sqliteDDL = map[string]string{
	KindUsers: `CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL
	)`,
	KindInvoices: `CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
		customer_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		status TEXT NOT NULL,
		date TEXT NOT NULL
	)`,
	KindCustomers: `CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY DEFAULT ` + sqliteUUID + `,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		image_url TEXT NOT NULL
	)`,
	KindRevenue: `CREATE TABLE IF NOT EXISTS revenue (
		month TEXT NOT NULL UNIQUE,
		revenue INTEGER NOT NULL
	)`,
}

// EnsureSchema creates the table for kind if it does not exist. On
// PostgreSQL the uuid-ossp extension is created first.
func EnsureSchema(ctx context.Context, exec Executor, dialect Dialect, kind string) error {
	ddl, ok := schemaFor(dialect)[kind]
	if !ok {
		return fmt.Errorf("unknown table kind %q", kind)
	}

	if dialect == DialectPostgres {
		if _, err := exec.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`); err != nil {
			return fmt.Errorf("create uuid-ossp extension: %w", err)
		}
	}

	if _, err := exec.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", kind, err)
	}
	return nil
}

func schemaFor(d Dialect) map[string]string {
	if d == DialectSQLite {
		return sqliteDDL
	}
	return postgresDDL
}
