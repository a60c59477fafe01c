package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the ISO 8601 calendar date layout used for invoice dates.
const DateLayout = "2006-01-02"

const (
	StatusPending InvoiceStatus = "pending"
	StatusPaid    InvoiceStatus = "paid"
)

type (
	InvoiceStatus string

	Money struct {
		Cents int64
	}

	// Invoice is a persisted invoice row. Amount is always in minor units.
	Invoice struct {
		ID         string
		CustomerID string
		Amount     Money
		Status     InvoiceStatus
		Date       time.Time
	}

	Customer struct {
		ID       string
		Name     string
		Email    string
		ImageURL string
	}

	// User holds only the password hash; plaintext never leaves the seed loader.
	User struct {
		ID           string
		Name         string
		Email        string
		PasswordHash string
	}

	Revenue struct {
		Month   string
		Revenue int64
	}
)

var (
	ErrInvalidStatus  = errors.New("invalid invoice status")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrEmptyCustomer  = errors.New("empty customer reference")
	ErrInvalidMonth   = errors.New("invalid revenue month")
	ErrEmptyEmail     = errors.New("empty email")
	ErrInvalidRevenue = errors.New("invalid revenue value")
)

// Statuses lists every accepted invoice status in display order.
func Statuses() []InvoiceStatus {
	return []InvoiceStatus{StatusPending, StatusPaid}
}

func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid reports whether s is pending or paid.
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid:
		return true
	default:
		return false
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (i Invoice) Validate() error {
	if strings.TrimSpace(i.CustomerID) == "" {
		return ErrEmptyCustomer
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if !i.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// DateString returns the invoice date as YYYY-MM-DD.
func (i Invoice) DateString() string {
	return i.Date.Format(DateLayout)
}

func (r Revenue) Validate() error {
	if n := len(r.Month); n < 3 || n > 4 {
		return ErrInvalidMonth
	}
	if r.Revenue < 0 {
		return ErrInvalidRevenue
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return ErrEmptyEmail
	}
	return nil
}

// ParseDate parses the leading YYYY-MM-DD of s. Drivers hand dates back either
// as plain dates or as RFC 3339 timestamps at midnight; both are accepted.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return time.Parse(DateLayout, s)
}

// Today returns the current calendar date in ISO form for the given clock.
func Today(now func() time.Time) string {
	if now == nil {
		now = time.Now
	}
	return now().Format(DateLayout)
}
