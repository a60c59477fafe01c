package invoices

import (
	"errors"

	"acme/internal/core"
	"acme/internal/validation"
)

// Field names as submitted by the invoice form.
const (
	FieldCustomerID = "customerId"
	FieldAmount     = "amount"
	FieldStatus     = "status"
)

// Field messages.
const (
	MsgSelectCustomer = "Please select a customer."
	MsgInvalidAmount  = "Please enter a valid amount."
	MsgAmountPositive = "Please enter an amount greater than $0."
	MsgAmountTooLarge = "Please enter an amount of at most $21,474,836.47."
	MsgSelectStatus   = "Please select an invoice status."
)

// Summary messages for a rejected form.
const (
	MsgCreateMissingFields = "Missing Fields. Failed to Create Invoice."
	MsgUpdateMissingFields = "Missing Fields. Failed to Update Invoice."
)

// amountCents coerces a major-unit decimal into minor units. An empty
// amount coerces to zero so it fails the positivity check rather than the
// numeric one.
func amountCents(raw string) (any, error) {
	cents, err := core.ParseDecimalToCents(raw)
	if errors.Is(err, core.ErrAmountTooLarge) {
		return nil, errors.New(MsgAmountTooLarge)
	}
	if err != nil {
		return nil, errors.New(MsgInvalidAmount)
	}
	return cents, nil
}

func schema(failureMessage string) validation.Schema {
	statuses := make([]string, 0, 2)
	for _, s := range core.Statuses() {
		statuses = append(statuses, s.String())
	}

	return validation.Schema{
		FailureMessage: failureMessage,
		Fields: []validation.Field{
			{
				Name:   FieldCustomerID,
				Checks: []validation.Check{validation.Required(MsgSelectCustomer)},
			},
			{
				Name:   FieldAmount,
				Coerce: amountCents,
				Checks: []validation.Check{validation.GreaterThan(0, MsgAmountPositive)},
			},
			{
				Name:   FieldStatus,
				Checks: []validation.Check{validation.OneOf(MsgSelectStatus, statuses...)},
			},
		},
	}
}

var (
	createSchema = schema(MsgCreateMissingFields)
	updateSchema = schema(MsgUpdateMissingFields)
)

// Input is the typed invoice record built from a validated form.
type Input struct {
	CustomerID string
	Amount     core.Money
	Status     core.InvoiceStatus
}

// ParseCreate validates a create form.
func ParseCreate(form validation.Values) (Input, validation.Result) {
	return parse(createSchema, form)
}

// ParseUpdate validates an update form.
func ParseUpdate(form validation.Values) (Input, validation.Result) {
	return parse(updateSchema, form)
}

func parse(s validation.Schema, form validation.Values) (Input, validation.Result) {
	res := validation.Validate(s, form)
	if !res.OK() {
		return Input{}, res
	}
	return Input{
		CustomerID: res.String(FieldCustomerID),
		Amount:     core.Money{Cents: res.Int64(FieldAmount)},
		Status:     core.InvoiceStatus(res.String(FieldStatus)),
	}, res
}
