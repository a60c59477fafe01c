// Package invoices implements the invoice mutation pipeline: validate the
// form, run one SQL statement, invalidate the cached listing and tell the
// caller where to go next.
package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"

	"acme/internal/cache"
	"acme/internal/core"
	"acme/internal/log"
	"acme/internal/metrics"
	"acme/internal/storage"
)

// ListingPath is the invoice listing route. Every mutation invalidates it and
// create/update redirect to it.
const ListingPath = "/dashboard/invoices"

// Actions, used as metric labels.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const (
	insertInvoiceSQL = `INSERT INTO invoices (customer_id, amount, status, date) VALUES ($1, $2, $3, $4)`
	updateInvoiceSQL = `UPDATE invoices SET customer_id = $1, amount = $2, status = $3 WHERE id = $4`
	deleteInvoiceSQL = `DELETE FROM invoices WHERE id = $1`
)

// Outcome is the navigation result of a committed mutation.
type Outcome struct {
	Redirect string
}

// Service runs invoice mutations against a store.
type Service struct {
	db          storage.Executor
	invalidator cache.Invalidator
	logger      *log.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used to date new invoices.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records mutation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(db storage.Executor, invalidator cache.Invalidator, logger *log.Logger, opts ...Option) *Service {
	s := &Service{
		db:          db,
		invalidator: invalidator,
		logger:      logger.WithComponent(log.ComponentInvoices),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new invoice dated today.
func (s *Service) Create(ctx context.Context, in Input) (Outcome, error) {
	date := core.Today(s.now)

	if _, err := s.db.ExecContext(ctx, insertInvoiceSQL, in.CustomerID, in.Amount.Cents, in.Status.String(), date); err != nil {
		s.logStoreFailure(ctx, log.OpCreate, "", in, err)
		return Outcome{}, &PersistenceError{Op: ActionCreate, Message: MsgCreateFailed, Err: err}
	}

	s.logger.InfoContext(ctx, "Invoice created",
		log.NewFields().WithInvoice("", in.CustomerID, in.Amount.Cents, in.Status.String()).ToSlice()...)
	s.invalidate(ctx)
	return Outcome{Redirect: ListingPath}, nil
}

// Update rewrites the customer, amount and status of invoice id. The date is
// left untouched. No matching row yields a *NotFoundError.
func (s *Service) Update(ctx context.Context, id string, in Input) (Outcome, error) {
	res, err := s.db.ExecContext(ctx, updateInvoiceSQL, in.CustomerID, in.Amount.Cents, in.Status.String(), id)
	if err != nil {
		if invalidID(err, id) {
			return Outcome{}, &NotFoundError{ID: id}
		}
		s.logStoreFailure(ctx, log.OpUpdate, id, in, err)
		return Outcome{}, &PersistenceError{Op: ActionUpdate, Message: MsgUpdateFailed, Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		s.logStoreFailure(ctx, log.OpUpdate, id, in, err)
		return Outcome{}, &PersistenceError{Op: ActionUpdate, Message: MsgUpdateFailed, Err: err}
	}
	if n == 0 {
		return Outcome{}, &NotFoundError{ID: id}
	}

	s.logger.InfoContext(ctx, "Invoice updated",
		log.NewFields().WithInvoice(id, in.CustomerID, in.Amount.Cents, in.Status.String()).ToSlice()...)
	s.invalidate(ctx)
	return Outcome{Redirect: ListingPath}, nil
}

// Delete removes invoice id. Deleting a missing id is not an error. There is
// no redirect; the caller stays where it is.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, deleteInvoiceSQL, id); err != nil && !invalidID(err, id) {
		s.logger.ErrorContext(ctx, "Failed to delete invoice",
			log.NewFields().WithOperation(log.OpDelete).WithError(err).WithErrorType(log.ErrorTypeDatabase).ToSlice()...)
		return &PersistenceError{Op: ActionDelete, Message: MsgDeleteFailed, Err: err}
	}

	s.logger.InfoContext(ctx, "Invoice deleted", log.FieldInvoiceID, id)
	s.invalidate(ctx)
	return nil
}

// invalidID reports whether the store refused id itself as a key. Such an id
// matches no row. A well-formed id means the bad literal was another argument.
func invalidID(err error, id string) bool {
	if !storage.IsInvalidKey(err) {
		return false
	}
	_, perr := uuid.Parse(id)
	return perr != nil
}

// invalidate drops the cached listing. The mutation has already committed,
// so a failure here is logged and the cached pages age out by TTL.
func (s *Service) invalidate(ctx context.Context) {
	if err := s.invalidator.Invalidate(ctx, ListingPath); err != nil {
		s.logger.WarnContext(ctx, "Cache invalidation failed",
			log.NewFields().WithOperation(log.OpInvalidate).WithError(err).ToSlice()...)
	}
}

func (s *Service) logStoreFailure(ctx context.Context, op, id string, in Input, err error) {
	fields := log.NewFields().
		WithOperation(op).
		WithError(err).
		WithErrorType(log.ErrorTypeDatabase).
		WithInvoice(id, in.CustomerID, in.Amount.Cents, in.Status.String())
	s.logger.ErrorContext(ctx, "Invoice store call failed", fields.ToSlice()...)
}
