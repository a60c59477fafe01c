package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"acme/internal/core"
	"acme/internal/invoices"
	"acme/internal/storage"
	"acme/internal/validation"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, view{status: http.StatusOK, name: tmplHome, page: page{Title: "Welcome"}})
}

type dashboardData struct {
	Cards   core.CardData
	Revenue []core.Revenue
	Latest  []core.InvoiceRow
}

func (s *Server) dashboardPage(r *http.Request) (view, error) {
	ctx := r.Context()
	cards, err := s.reader.CardData(ctx)
	if err != nil {
		return view{}, fmt.Errorf("load card data: %w", err)
	}
	revenue, err := s.reader.Revenue(ctx)
	if err != nil {
		return view{}, fmt.Errorf("load revenue: %w", err)
	}
	latest, err := s.reader.LatestInvoices(ctx, latestInvoicesLimit)
	if err != nil {
		return view{}, fmt.Errorf("load latest invoices: %w", err)
	}
	return view{
		status: http.StatusOK,
		name:   tmplDashboard,
		page: page{Title: "Dashboard", Nav: true, Data: dashboardData{
			Cards:   cards,
			Revenue: revenue,
			Latest:  latest,
		}},
	}, nil
}

type invoicesData struct {
	Query      string
	Page       int
	TotalPages int
	Invoices   []core.InvoiceRow
}

func (s *Server) invoicesPage(r *http.Request) (view, error) {
	ctx := r.Context()
	params := ParseListParams(r.URL.Query())

	rows, err := s.reader.FilteredInvoices(ctx, params.Query, params.Page)
	if err != nil {
		return view{}, fmt.Errorf("load invoices (query=%q, page=%d): %w", params.Query, params.Page, err)
	}
	pages, err := s.reader.InvoicePages(ctx, params.Query)
	if err != nil {
		return view{}, fmt.Errorf("count invoice pages (query=%q): %w", params.Query, err)
	}
	return view{
		status: http.StatusOK,
		name:   tmplInvoices,
		page: page{Title: "Invoices", Nav: true, Data: invoicesData{
			Query:      params.Query,
			Page:       params.Page,
			TotalPages: pages,
			Invoices:   rows,
		}},
	}, nil
}

type customersData struct {
	Query     string
	Customers []core.CustomerSummary
}

func (s *Server) customersPage(r *http.Request) (view, error) {
	params := ParseListParams(r.URL.Query())
	customers, err := s.reader.FilteredCustomers(r.Context(), params.Query)
	if err != nil {
		return view{}, fmt.Errorf("load customers (query=%q): %w", params.Query, err)
	}
	return view{
		status: http.StatusOK,
		name:   tmplCustomers,
		page: page{Title: "Customers", Nav: true, Data: customersData{
			Query:     params.Query,
			Customers: customers,
		}},
	}, nil
}

// formData backs invoice_form.html for both create and edit.
type formData struct {
	Heading    string
	Action     string
	Submit     string
	Customers  []core.Customer
	Statuses   []core.InvoiceStatus
	CustomerID string
	Amount     string
	Status     core.InvoiceStatus
	Errors     validation.Errors
	Message    string
}

func createForm() formData {
	return formData{
		Heading: "Create Invoice",
		Action:  invoices.ListingPath + "/create",
		Submit:  "Create Invoice",
	}
}

func editForm(id string) formData {
	return formData{
		Heading: "Edit Invoice",
		Action:  invoices.ListingPath + "/" + id + "/edit",
		Submit:  "Edit Invoice",
	}
}

// formView fills the customer select and wraps f in a page.
func (s *Server) formView(r *http.Request, status int, f formData) (view, error) {
	customers, err := s.reader.Customers(r.Context())
	if err != nil {
		return view{}, fmt.Errorf("load customers: %w", err)
	}
	f.Customers = customers
	f.Statuses = core.Statuses()
	return view{status: status, name: tmplInvoiceForm, page: page{Title: f.Heading, Nav: true, Data: f}}, nil
}

func (s *Server) createFormPage(r *http.Request) (view, error) {
	return s.formView(r, http.StatusOK, createForm())
}

func (s *Server) editFormPage(r *http.Request) (view, error) {
	id := chi.URLParam(r, "id")
	inv, err := s.reader.InvoiceByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return notFoundView(), nil
	}
	if err != nil {
		return view{}, fmt.Errorf("load invoice %s: %w", id, err)
	}

	f := editForm(id)
	f.CustomerID = inv.CustomerID
	f.Amount = inv.Amount.MajorString()
	f.Status = inv.Status
	return s.formView(r, http.StatusOK, f)
}

func notFoundView() view {
	return view{
		status: http.StatusNotFound,
		name:   tmplError,
		page: page{Title: "404 Not Found", Nav: true, Data: struct {
			Heading string
			Message string
		}{"404 Not Found", "Could not find the requested invoice."}},
	}
}
