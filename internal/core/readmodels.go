package core

// InvoiceRow is an invoice joined with the customer it bills, as shown in
// listings.
type InvoiceRow struct {
	ID       string
	Amount   Money
	Date     string
	Status   InvoiceStatus
	Name     string
	Email    string
	ImageURL string
}

// CustomerSummary aggregates a customer's invoices.
type CustomerSummary struct {
	ID            string
	Name          string
	Email         string
	ImageURL      string
	TotalInvoices int64
	TotalPending  Money
	TotalPaid     Money
}

// CardData feeds the dashboard overview cards.
type CardData struct {
	NumberOfInvoices  int64
	NumberOfCustomers int64
	TotalPaid         Money
	TotalPending      Money
}
