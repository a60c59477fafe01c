package invoices

import "fmt"

// Messages surfaced to the form when persistence fails. The cause is logged,
// never shown.
const (
	MsgCreateFailed = "Database Error: Failed to Create Invoice."
	MsgUpdateFailed = "Database Error: Failed to Update Invoice."
	MsgDeleteFailed = "Database Error: Failed to Delete Invoice."
)

// PersistenceError carries a generic user-facing message and the store
// error that caused it.
type PersistenceError struct {
	Op      string
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s invoice: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned by Update when no invoice has the given id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("invoice %s not found", e.ID)
}
