package invoices

import (
	"context"
	"errors"

	"acme/internal/metrics"
	"acme/internal/validation"
)

// MsgNotFound is shown when an update targets a missing invoice.
const MsgNotFound = "Invoice not found."

// State is what a form action hands back to its form. Redirect is set only
// when the mutation committed and the caller should navigate.
type State struct {
	Errors   validation.Errors
	Message  string
	Redirect string
	NotFound bool
}

// Committed reports whether the action persisted its change.
func (s State) Committed() bool {
	return len(s.Errors) == 0 && s.Message == "" && !s.NotFound
}

// CreateInvoice is the create form action.
func (s *Service) CreateInvoice(ctx context.Context, _ State, form validation.Values) State {
	in, res := ParseCreate(form)
	if !res.OK() {
		s.metrics.Mutation(ActionCreate, metrics.ResultRejected)
		return State{Errors: res.Errors, Message: res.Message}
	}

	out, err := s.Create(ctx, in)
	if err != nil {
		return s.failed(ActionCreate, err)
	}
	s.metrics.Mutation(ActionCreate, metrics.ResultCommitted)
	return State{Redirect: out.Redirect}
}

// UpdateInvoice is the edit form action for invoice id.
func (s *Service) UpdateInvoice(ctx context.Context, id string, _ State, form validation.Values) State {
	in, res := ParseUpdate(form)
	if !res.OK() {
		s.metrics.Mutation(ActionUpdate, metrics.ResultRejected)
		return State{Errors: res.Errors, Message: res.Message}
	}

	out, err := s.Update(ctx, id, in)
	if err != nil {
		return s.failed(ActionUpdate, err)
	}
	s.metrics.Mutation(ActionUpdate, metrics.ResultCommitted)
	return State{Redirect: out.Redirect}
}

// DeleteInvoice is the delete button action.
func (s *Service) DeleteInvoice(ctx context.Context, id string) State {
	if err := s.Delete(ctx, id); err != nil {
		return s.failed(ActionDelete, err)
	}
	s.metrics.Mutation(ActionDelete, metrics.ResultCommitted)
	return State{}
}

func (s *Service) failed(action string, err error) State {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		s.metrics.Mutation(action, metrics.ResultNotFound)
		return State{Message: MsgNotFound, NotFound: true}
	}

	s.metrics.Mutation(action, metrics.ResultFailed)
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return State{Message: pe.Message}
	}
	return State{Message: "Something went wrong."}
}
