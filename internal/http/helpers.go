package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"strconv"

	"acme/internal/core"
	"acme/internal/invoices"
)

// Page templates, each rendered inside layout.html.
const (
	tmplHome        = "home.html"
	tmplLogin       = "login.html"
	tmplDashboard   = "dashboard.html"
	tmplInvoices    = "invoices.html"
	tmplInvoiceForm = "invoice_form.html"
	tmplCustomers   = "customers.html"
	tmplError       = "error.html"
)

// page is the layout data. Data is handed to the page's content block.
type page struct {
	Title string
	Nav   bool
	Data  any
}

// renderer holds one template set per page, so pages can share block names.
type renderer struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"formatDate": formatDate,
	"pageURL":    pageURL,
	"add":        func(a, b int) int { return a + b },
	"sub":        func(a, b int) int { return a - b },
}

func newRenderer(fsys fs.FS) (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{tmplHome, tmplLogin, tmplDashboard, tmplInvoices, tmplInvoiceForm, tmplCustomers, tmplError} {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// render executes the named page into a buffer so a failure never leaves a
// half-written response.
func (r *renderer) render(name string, p page) ([]byte, error) {
	t, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %s", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// formatDate renders an ISO date as e.g. "Dec 6, 2022". Unparseable input is
// returned as is.
func formatDate(s string) string {
	t, err := core.ParseDate(s)
	if err != nil {
		return s
	}
	return t.Format("Jan 2, 2006")
}

// pageURL links to page of the invoice listing for query.
func pageURL(query string, page int) string {
	q := url.Values{}
	if query != "" {
		q.Set("query", query)
	}
	q.Set("page", strconv.Itoa(page))
	return invoices.ListingPath + "?" + q.Encode()
}
