// Package seed loads the canonical dataset into an empty or partially
// loaded database. Loading is idempotent: every insert ignores rows whose
// key already exists, so running it again changes nothing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"acme/internal/log"
	"acme/internal/metrics"
	"acme/internal/storage"
)

// DefaultBcryptCost matches the cost seeded users have always been hashed with.
const DefaultBcryptCost = 10

const (
	insertUserSQL = `INSERT INTO users (id, name, email, password)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`
	insertInvoiceSQL = `INSERT INTO invoices (id, customer_id, amount, status, date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	insertCustomerSQL = `INSERT INTO customers (id, name, email, image_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`
	insertRevenueSQL = `INSERT INTO revenue (month, revenue)
		VALUES ($1, $2)
		ON CONFLICT (month) DO NOTHING`
)

// KindReport is the outcome of one table kind.
type KindReport struct {
	Kind     string
	Rows     int
	Err      error
	Duration time.Duration
}

// Report lists every kind in the order it was processed.
type Report struct {
	Kinds []KindReport
}

// Err joins the failures of every kind, or nil.
func (r Report) Err() error {
	var errs []error
	for _, k := range r.Kinds {
		if k.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k.Kind, k.Err))
		}
	}
	return errors.Join(errs...)
}

// Rows returns the attempted row count of kind.
func (r Report) Rows(kind string) int {
	for _, k := range r.Kinds {
		if k.Kind == kind {
			return k.Rows
		}
	}
	return 0
}

// Loader writes a Dataset through an Executor.
type Loader struct {
	db          storage.Executor
	dialect     storage.Dialect
	logger      *log.Logger
	metrics     *metrics.Metrics
	bcryptCost  int
	concurrency int
}

// Option configures a Loader.
type Option func(*Loader)

// WithBcryptCost overrides DefaultBcryptCost.
func WithBcryptCost(cost int) Option {
	return func(l *Loader) { l.bcryptCost = cost }
}

// WithConcurrency bounds the in-flight inserts per kind.
func WithConcurrency(n int) Option {
	return func(l *Loader) { l.concurrency = n }
}

// WithMetrics records attempted rows on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

func NewLoader(db storage.Executor, dialect storage.Dialect, logger *log.Logger, opts ...Option) *Loader {
	l := &Loader{
		db:          db,
		dialect:     dialect,
		logger:      logger.WithComponent(log.ComponentSeed),
		bcryptCost:  DefaultBcryptCost,
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run ensures each table and loads its rows, kind by kind. A failing kind is
// reported and logged; the remaining kinds still run.
func (l *Loader) Run(ctx context.Context, ds *Dataset) Report {
	var report Report
	for _, kind := range storage.Kinds() {
		start := time.Now()
		rows, err := l.loadKind(ctx, ds, kind)
		kr := KindReport{Kind: kind, Rows: rows, Err: err, Duration: time.Since(start)}
		report.Kinds = append(report.Kinds, kr)

		if err != nil {
			l.logger.ErrorContext(ctx, "Seeding failed",
				log.NewFields().WithOperation(log.OpSeed).With(log.FieldKind, kind).WithError(err).WithErrorType(log.ErrorTypeDatabase).ToSlice()...)
			continue
		}
		l.metrics.SeedRows(kind, rows)
		l.logger.InfoContext(ctx, "Seeded table", log.FieldKind, kind, log.FieldRows, rows, log.FieldDuration, kr.Duration.Milliseconds())
	}
	return report
}

func (l *Loader) loadKind(ctx context.Context, ds *Dataset, kind string) (int, error) {
	if err := storage.EnsureSchema(ctx, l.db, l.dialect, kind); err != nil {
		return 0, err
	}

	switch kind {
	case storage.KindUsers:
		return len(ds.Users), fanOut(ctx, l.concurrency, ds.Users, l.insertUser)
	case storage.KindInvoices:
		return len(ds.Invoices), fanOut(ctx, l.concurrency, ds.Invoices, l.insertInvoice)
	case storage.KindCustomers:
		return len(ds.Customers), fanOut(ctx, l.concurrency, ds.Customers, l.insertCustomer)
	case storage.KindRevenue:
		return len(ds.Revenue), fanOut(ctx, l.concurrency, ds.Revenue, l.insertRevenue)
	default:
		return 0, fmt.Errorf("unknown kind %q", kind)
	}
}

// fanOut inserts every row concurrently and waits for all of them.
func fanOut[T any](ctx context.Context, limit int, rows []T, insert func(context.Context, T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, row := range rows {
		g.Go(func() error { return insert(ctx, row) })
	}
	return g.Wait()
}

func (l *Loader) insertUser(ctx context.Context, u UserRow) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), l.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", u.Email, err)
	}
	if _, err := l.db.ExecContext(ctx, insertUserSQL, u.ID, u.Name, u.Email, string(hash)); err != nil {
		return fmt.Errorf("insert user %s: %w", u.ID, err)
	}
	return nil
}

func (l *Loader) insertInvoice(ctx context.Context, inv InvoiceRow) error {
	id := inv.Key()
	if _, err := l.db.ExecContext(ctx, insertInvoiceSQL, id, inv.CustomerID, inv.Amount, inv.Status, inv.Date); err != nil {
		return fmt.Errorf("insert invoice %s: %w", id, err)
	}
	return nil
}

func (l *Loader) insertCustomer(ctx context.Context, c CustomerRow) error {
	if _, err := l.db.ExecContext(ctx, insertCustomerSQL, c.ID, c.Name, c.Email, c.ImageURL); err != nil {
		return fmt.Errorf("insert customer %s: %w", c.ID, err)
	}
	return nil
}

func (l *Loader) insertRevenue(ctx context.Context, r RevenueRow) error {
	if _, err := l.db.ExecContext(ctx, insertRevenueSQL, r.Month, r.Revenue); err != nil {
		return fmt.Errorf("insert revenue %s: %w", r.Month, err)
	}
	return nil
}
