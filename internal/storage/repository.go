package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"acme/internal/core"
)

// ItemsPerPage is the invoice listing page size.
const ItemsPerPage = 6

// Repository serves the dashboard read path.
type Repository struct {
	db      Executor
	dialect Dialect
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db, dialect: db.Dialect()}
}

// likeOp is the case-insensitive pattern operator of the dialect. SQLite's
// LIKE already ignores ASCII case.
func (r *Repository) likeOp() string {
	if r.dialect == DialectPostgres {
		return "ILIKE"
	}
	return "LIKE"
}

// Revenue returns the monthly revenue rows in insertion order.
func (r *Repository) Revenue(ctx context.Context) ([]core.Revenue, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT month, revenue FROM revenue`)
	if err != nil {
		return nil, fmt.Errorf("query revenue: %w", err)
	}
	defer rows.Close()

	var out []core.Revenue
	for rows.Next() {
		var rv core.Revenue
		if err := rows.Scan(&rv.Month, &rv.Revenue); err != nil {
			return nil, fmt.Errorf("scan revenue: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// LatestInvoices returns the most recent invoices, newest first.
func (r *Repository) LatestInvoices(ctx context.Context, limit int) ([]core.InvoiceRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT invoices.id, invoices.amount, invoices.date, invoices.status,
			customers.name, customers.email, customers.image_url
		FROM invoices
		JOIN customers ON invoices.customer_id = customers.id
		ORDER BY invoices.date DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest invoices: %w", err)
	}
	defer rows.Close()
	return scanInvoiceRows(rows)
}

// CardData aggregates invoice and customer counts and paid/pending totals.
func (r *Repository) CardData(ctx context.Context) (core.CardData, error) {
	var cd core.CardData

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&cd.NumberOfInvoices); err != nil {
		return cd, fmt.Errorf("count invoices: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&cd.NumberOfCustomers); err != nil {
		return cd, fmt.Errorf("count customers: %w", err)
	}

	var paid, pending int64
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'paid' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN amount ELSE 0 END), 0)
		FROM invoices`).Scan(&paid, &pending)
	if err != nil {
		return cd, fmt.Errorf("sum invoice status: %w", err)
	}
	cd.TotalPaid = core.Money{Cents: paid}
	cd.TotalPending = core.Money{Cents: pending}
	return cd, nil
}

// FilteredInvoices returns one page (1-based) of invoices matching query on
// customer name, email, amount, date or status.
func (r *Repository) FilteredInvoices(ctx context.Context, query string, page int) ([]core.InvoiceRow, error) {
	if page < 1 {
		page = 1
	}
	op := r.likeOp()
	rows, err := r.db.QueryContext(ctx, `
		SELECT invoices.id, invoices.amount, invoices.date, invoices.status,
			customers.name, customers.email, customers.image_url
		FROM invoices
		JOIN customers ON invoices.customer_id = customers.id
		WHERE
			customers.name `+op+` $1 OR
			customers.email `+op+` $1 OR
			CAST(invoices.amount AS TEXT) `+op+` $1 OR
			CAST(invoices.date AS TEXT) `+op+` $1 OR
			invoices.status `+op+` $1
		ORDER BY invoices.date DESC
		LIMIT $2 OFFSET $3`,
		"%"+query+"%", ItemsPerPage, (page-1)*ItemsPerPage)
	if err != nil {
		return nil, fmt.Errorf("query filtered invoices: %w", err)
	}
	defer rows.Close()
	return scanInvoiceRows(rows)
}

// InvoicePages returns the number of listing pages for query.
func (r *Repository) InvoicePages(ctx context.Context, query string) (int, error) {
	op := r.likeOp()
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM invoices
		JOIN customers ON invoices.customer_id = customers.id
		WHERE
			customers.name `+op+` $1 OR
			customers.email `+op+` $1 OR
			CAST(invoices.amount AS TEXT) `+op+` $1 OR
			CAST(invoices.date AS TEXT) `+op+` $1 OR
			invoices.status `+op+` $1`,
		"%"+query+"%").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count invoice pages: %w", err)
	}
	return int((count + ItemsPerPage - 1) / ItemsPerPage), nil
}

// InvoiceByID loads one invoice for the edit form.
func (r *Repository) InvoiceByID(ctx context.Context, id string) (core.Invoice, error) {
	var (
		inv    core.Invoice
		amount int64
		status string
		date   string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, amount, status, date
		FROM invoices
		WHERE id = $1`, id).Scan(&inv.ID, &inv.CustomerID, &amount, &status, &date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || IsInvalidKey(err) {
			return inv, ErrNotFound
		}
		return inv, fmt.Errorf("find invoice by id: %w", err)
	}

	inv.Amount = core.Money{Cents: amount}
	inv.Status = core.InvoiceStatus(status)
	if inv.Date, err = core.ParseDate(date); err != nil {
		return inv, fmt.Errorf("parse invoice date: %w", err)
	}
	return inv, nil
}

// Customers returns every customer ordered by name, for the form select.
func (r *Repository) Customers(ctx context.Context) ([]core.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, image_url FROM customers ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var out []core.Customer
	for rows.Next() {
		var c core.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.ImageURL); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FilteredCustomers returns per-customer invoice totals for customers whose
// name or email matches query.
func (r *Repository) FilteredCustomers(ctx context.Context, query string) ([]core.CustomerSummary, error) {
	op := r.likeOp()
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			customers.id, customers.name, customers.email, customers.image_url,
			COUNT(invoices.id),
			COALESCE(SUM(CASE WHEN invoices.status = 'pending' THEN invoices.amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invoices.status = 'paid' THEN invoices.amount ELSE 0 END), 0)
		FROM customers
		LEFT JOIN invoices ON customers.id = invoices.customer_id
		WHERE customers.name `+op+` $1 OR customers.email `+op+` $1
		GROUP BY customers.id, customers.name, customers.email, customers.image_url
		ORDER BY customers.name ASC`, "%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("query filtered customers: %w", err)
	}
	defer rows.Close()

	var out []core.CustomerSummary
	for rows.Next() {
		var (
			cs            core.CustomerSummary
			pending, paid int64
		)
		if err := rows.Scan(&cs.ID, &cs.Name, &cs.Email, &cs.ImageURL, &cs.TotalInvoices, &pending, &paid); err != nil {
			return nil, fmt.Errorf("scan customer summary: %w", err)
		}
		cs.TotalPending = core.Money{Cents: pending}
		cs.TotalPaid = core.Money{Cents: paid}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// FindUserByEmail returns nil, nil when no user has email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password
		FROM users
		WHERE email = $1`, email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // user not found
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &u, nil
}

func scanInvoiceRows(rows *sql.Rows) ([]core.InvoiceRow, error) {
	var out []core.InvoiceRow
	for rows.Next() {
		var (
			row    core.InvoiceRow
			amount int64
			status string
			date   string
		)
		if err := rows.Scan(&row.ID, &amount, &date, &status, &row.Name, &row.Email, &row.ImageURL); err != nil {
			return nil, fmt.Errorf("scan invoice row: %w", err)
		}
		row.Amount = core.Money{Cents: amount}
		row.Status = core.InvoiceStatus(status)
		if len(date) >= len(core.DateLayout) {
			date = date[:len(core.DateLayout)]
		}
		row.Date = date
		out = append(out, row)
	}
	return out, rows.Err()
}
