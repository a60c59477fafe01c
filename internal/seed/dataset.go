package seed

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"acme/internal/core"
	"acme/internal/storage"
)

//go:embed data/placeholder.yaml
var placeholderYAML []byte

// invoiceNamespace scopes the deterministic ids of seeded invoices.
var invoiceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("acme:seed:invoices"))

// Dataset is the full seed payload.
type Dataset struct {
	Users     []UserRow     `yaml:"users"`
	Customers []CustomerRow `yaml:"customers"`
	Invoices  []InvoiceRow  `yaml:"invoices"`
	Revenue   []RevenueRow  `yaml:"revenue"`
}

// UserRow carries a plaintext password that is hashed before insert.
type UserRow struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type CustomerRow struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	ImageURL string `yaml:"image_url"`
}

// InvoiceRow has its amount already in minor units.
type InvoiceRow struct {
	ID         string `yaml:"id,omitempty"`
	CustomerID string `yaml:"customer_id"`
	Amount     int64  `yaml:"amount"`
	Status     string `yaml:"status"`
	Date       string `yaml:"date"`
}

type RevenueRow struct {
	Month   string `yaml:"month"`
	Revenue int64  `yaml:"revenue"`
}

// Key returns the invoice id, deriving a UUID v5 from customer, amount and
// date when the row has none.
func (r InvoiceRow) Key() string {
	if r.ID != "" {
		return r.ID
	}
	name := fmt.Sprintf("%s|%d|%s", r.CustomerID, r.Amount, r.Date)
	return uuid.NewSHA1(invoiceNamespace, []byte(name)).String()
}

// Counts returns the number of rows per kind.
func (d *Dataset) Counts() map[string]int {
	return map[string]int{
		storage.KindUsers:     len(d.Users),
		storage.KindCustomers: len(d.Customers),
		storage.KindInvoices:  len(d.Invoices),
		storage.KindRevenue:   len(d.Revenue),
	}
}

// Validate checks every row against the domain rules and reports all
// problems at once.
func (d *Dataset) Validate() error {
	var errs []error
	for i, u := range d.Users {
		if err := (core.User{Email: u.Email}).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("users[%d]: %w", i, err))
		}
		if u.Password == "" {
			errs = append(errs, fmt.Errorf("users[%d]: empty password", i))
		}
	}
	for i, inv := range d.Invoices {
		date, err := core.ParseDate(inv.Date)
		if err != nil {
			errs = append(errs, fmt.Errorf("invoices[%d]: invalid date %q", i, inv.Date))
		}
		invoice := core.Invoice{
			CustomerID: inv.CustomerID,
			Amount:     core.Money{Cents: inv.Amount},
			Status:     core.InvoiceStatus(inv.Status),
			Date:       date,
		}
		if err := invoice.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("invoices[%d]: %w", i, err))
		}
	}
	for i, r := range d.Revenue {
		if err := (core.Revenue{Month: r.Month, Revenue: r.Revenue}).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("revenue[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Parse decodes and validates a YAML dataset.
func Parse(r io.Reader) (*Dataset, error) {
	var d Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}
	return &d, nil
}

// Placeholder returns the embedded canonical dataset.
func Placeholder() (*Dataset, error) {
	return Parse(bytes.NewReader(placeholderYAML))
}

// LoadFile reads a dataset from path.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
