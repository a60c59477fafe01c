package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"acme/internal/auth"
	"acme/internal/cache"
	"acme/internal/core"
	"acme/internal/invoices"
	"acme/internal/log"
	"acme/internal/metrics"
	"acme/internal/seed"
	"acme/internal/storage"
	"acme/internal/validation"
)

const evilRabbit = "d6e15727-9fe1-4961-8c5b-ea44a9bd81aa"

type testApp struct {
	srv   *Server
	db    *storage.DB
	pages *cache.FencedStore
	m     *metrics.Metrics
}

// newTestApp wires the server over a seeded SQLite database.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(ctx, storage.DialectSQLite, filepath.Join(t.TempDir(), "acme.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ds, err := seed.Placeholder()
	require.NoError(t, err)
	report := seed.NewLoader(db, db.Dialect(), log.Discard(), seed.WithBcryptCost(bcrypt.MinCost)).Run(ctx, ds)
	require.NoError(t, report.Err())

	pages := cache.NewFencedStore(cache.NewMemoryStore(cache.NewLRUCache[[]byte](100, time.Minute)))
	m := metrics.New()
	repo := storage.NewRepository(db)
	svc := invoices.NewService(db, cache.NewStoreInvalidator(pages, log.Discard()), log.Discard(), invoices.WithMetrics(m))

	srv, err := NewServer(":0", Deps{
		Reader:  repo,
		Actions: svc,
		Auth:    auth.NewCredentialsProvider(repo, log.Discard(), m),
		Pages:   pages,
		DB:      db,
		Metrics: m,
		Logger:  log.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testApp{srv: srv, db: db, pages: pages, m: m}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (a *testApp) get(path string) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (a *testApp) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req)
}

func (a *testApp) countInvoices(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, a.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM invoices`).Scan(&n))
	return n
}

func TestHealthAndReady(t *testing.T) {
	app := newTestApp(t)

	for path, body := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		rr := app.get(path)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, body, rr.Body.String(), path)
	}
}

func TestReadyReportsUnreachableDatabase(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, app.db.Close())

	rr := app.get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestPagesRender(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		path string
		want []string
	}{
		{"/", []string{"Welcome to Acme.", `href="/login"`}},
		{"/login", []string{"Please log in to continue.", `name="password"`}},
		{"/dashboard", []string{"Collected", "Latest Invoices", "Michael Novotny", "$448.00", "Jan"}},
		{"/dashboard/invoices", []string{"Create Invoice", "Page 1 of 3", "Sep 10, 2023"}},
		{"/dashboard/invoices?query=delba", []string{"Delba de Oliveira"}},
		{"/dashboard/invoices/create", []string{"Select a customer", "Balazs Orban", `value="paid"`}},
		{"/dashboard/customers", []string{"Amy Burns", "Total Pending"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := app.get(tt.path)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
			for _, want := range tt.want {
				assert.Contains(t, rr.Body.String(), want)
			}
		})
	}
}

func TestSidebarOnlyOnDashboard(t *testing.T) {
	app := newTestApp(t)

	assert.Contains(t, app.get("/dashboard").Body.String(), `href="/dashboard/customers"`)
	assert.NotContains(t, app.get("/login").Body.String(), `class="sidebar"`)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	app := newTestApp(t)

	rr := app.get("/dashboard")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
	assert.True(t, strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_"))
}

func TestStaticAssets(t *testing.T) {
	app := newTestApp(t)

	rr := app.get("/static/style.css")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
}

func TestUnknownRouteIs404(t *testing.T) {
	app := newTestApp(t)

	rr := app.get("/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Could not find the requested page.")
}

func TestListingIsCachedUntilInvalidated(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, "MISS", app.get("/dashboard/invoices").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", app.get("/dashboard/invoices").Header().Get("X-Cache"))
	assert.Equal(t, "MISS", app.get("/dashboard/invoices?page=2").Header().Get("X-Cache"))
	app.get("/dashboard")
	app.get("/dashboard/customers")

	rr := app.post("/dashboard/invoices/create", url.Values{
		"customerId": {evilRabbit},
		"amount":     {"45.50"},
		"status":     {"pending"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code, rr.Body.String())
	assert.Equal(t, "/dashboard/invoices", rr.Header().Get("Location"))

	assert.Equal(t, "MISS", app.get("/dashboard/invoices").Header().Get("X-Cache"))
	assert.Equal(t, "MISS", app.get("/dashboard/invoices?page=2").Header().Get("X-Cache"))
	assert.Equal(t, "MISS", app.get("/dashboard").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", app.get("/dashboard/customers").Header().Get("X-Cache"))
}

func TestCreateInvoice(t *testing.T) {
	app := newTestApp(t)
	before := app.countInvoices(t)

	rr := app.post("/dashboard/invoices/create", url.Values{
		"customerId": {evilRabbit},
		"amount":     {"45.50"},
		"status":     {"paid"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, before+1, app.countInvoices(t))

	var amount int64
	require.NoError(t, app.db.QueryRowContext(context.Background(),
		`SELECT amount FROM invoices WHERE customer_id = $1 AND status = 'paid' AND amount = 4550`, evilRabbit).Scan(&amount))
	assert.Equal(t, int64(4550), amount)
}

func TestCreateInvoiceHTMXRedirect(t *testing.T) {
	app := newTestApp(t)

	form := url.Values{"customerId": {evilRabbit}, "amount": {"10"}, "status": {"pending"}}
	req := httptest.NewRequest(http.MethodPost, "/dashboard/invoices/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")

	rr := app.do(req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/dashboard/invoices", rr.Header().Get("HX-Redirect"))
}

func TestCreateInvoiceRejected(t *testing.T) {
	app := newTestApp(t)
	before := app.countInvoices(t)

	rr := app.post("/dashboard/invoices/create", url.Values{"amount": {"-1"}})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, invoices.MsgSelectCustomer)
	assert.Contains(t, body, "Please enter an amount greater than $0.")
	assert.Contains(t, body, invoices.MsgSelectStatus)
	assert.Contains(t, body, invoices.MsgCreateMissingFields)
	assert.Contains(t, body, `value="-1"`)
	assert.Equal(t, before, app.countInvoices(t))
}

func TestEditInvoice(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	var id string
	require.NoError(t, app.db.QueryRowContext(ctx,
		`SELECT id FROM invoices WHERE customer_id = $1 AND amount = 15795`, evilRabbit).Scan(&id))

	rr := app.get("/dashboard/invoices/" + id + "/edit")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `value="157.95"`)

	rr = app.post("/dashboard/invoices/"+id+"/edit", url.Values{
		"customerId": {evilRabbit},
		"amount":     {"200"},
		"status":     {"paid"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard/invoices", rr.Header().Get("Location"))

	var amount int64
	var status string
	require.NoError(t, app.db.QueryRowContext(ctx, `SELECT amount, status FROM invoices WHERE id = $1`, id).Scan(&amount, &status))
	assert.Equal(t, int64(20000), amount)
	assert.Equal(t, "paid", status)

	rr = app.post("/dashboard/invoices/"+id+"/edit", url.Values{"customerId": {evilRabbit}, "amount": {"x"}, "status": {"paid"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), invoices.MsgUpdateMissingFields)
}

func TestEditMissingInvoiceIs404(t *testing.T) {
	app := newTestApp(t)

	rr := app.get("/dashboard/invoices/missing/edit")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = app.post("/dashboard/invoices/missing/edit", url.Values{
		"customerId": {evilRabbit},
		"amount":     {"1"},
		"status":     {"paid"},
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Could not find the requested invoice.")
}

func TestDeleteInvoice(t *testing.T) {
	app := newTestApp(t)
	before := app.countInvoices(t)

	var id string
	require.NoError(t, app.db.QueryRowContext(context.Background(), `SELECT id FROM invoices LIMIT 1`).Scan(&id))

	req := httptest.NewRequest(http.MethodPost, "/dashboard/invoices/"+id+"/delete", nil)
	req.Header.Set("Referer", "http://example.com/dashboard/invoices?query=lee&page=2")
	rr := app.do(req)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard/invoices?page=2&query=lee", rr.Header().Get("Location"))
	assert.Equal(t, before-1, app.countInvoices(t))

	// Deleting again is not an error.
	rr = app.post("/dashboard/invoices/"+id+"/delete", nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard/invoices", rr.Header().Get("Location"))
}

func TestDeleteInvoiceHTMX(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/dashboard/invoices/whatever/delete", nil)
	req.Header.Set("HX-Request", "true")
	rr := app.do(req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), `"invoice:deleted":{"id":"whatever"}`)
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)

	rr := app.post("/login", url.Values{"email": {"user@nextmail.com"}, "password": {"123456"}})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))

	rr = app.post("/login", url.Values{"email": {"user@nextmail.com"}, "password": {"wrong-password"}})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), auth.MsgInvalidCredentials)
	assert.Contains(t, rr.Body.String(), `value="user@nextmail.com"`)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	app.get("/dashboard/invoices")
	app.post("/dashboard/invoices/create", url.Values{})

	rr := app.get("/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `acme_invoices_mutations_total{action="create",result="rejected"} 1`)
	assert.Contains(t, body, `acme_cache_misses_total 1`)
	assert.Contains(t, body, `route="/dashboard/invoices"`)
}

// Fakes for failure paths the real store cannot easily produce.

type failingReader struct{ Reader }

func (failingReader) CardData(context.Context) (core.CardData, error) {
	return core.CardData{}, errors.New("connection refused")
}

func (failingReader) Customers(context.Context) ([]core.Customer, error) {
	return nil, nil
}

type stubActions struct{ state invoices.State }

func (a stubActions) CreateInvoice(context.Context, invoices.State, validation.Values) invoices.State {
	return a.state
}

func (a stubActions) UpdateInvoice(context.Context, string, invoices.State, validation.Values) invoices.State {
	return a.state
}

func (a stubActions) DeleteInvoice(context.Context, string) invoices.State {
	return a.state
}

type providerFunc func(ctx context.Context, scheme string, creds auth.Credentials) error

func (f providerFunc) SignIn(ctx context.Context, scheme string, creds auth.Credentials) error {
	return f(ctx, scheme, creds)
}

func newPages() *cache.FencedStore {
	return cache.NewFencedStore(cache.NewMemoryStore(cache.NewLRUCache[[]byte](10, time.Minute)))
}

func newStubServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Reader == nil {
		deps.Reader = failingReader{}
	}
	if deps.Actions == nil {
		deps.Actions = stubActions{}
	}
	if deps.Auth == nil {
		deps.Auth = providerFunc(func(context.Context, string, auth.Credentials) error { return nil })
	}
	if deps.Pages == nil {
		deps.Pages = newPages()
	}
	srv, err := NewServer(":0", deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestNewServerRequiresCollaborators(t *testing.T) {
	_, err := NewServer(":0", Deps{})
	assert.Error(t, err)
}

func TestReadFailureIsNotCached(t *testing.T) {
	pages := newPages()
	srv := newStubServer(t, Deps{Pages: pages})

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	_, hit, _ := pages.Get(context.Background(), "/dashboard")
	assert.False(t, hit)
}

// invalidatingReader invalidates the listing while the customers page loads,
// as a concurrent mutation would.
type invalidatingReader struct {
	Reader
	pages *cache.FencedStore
}

func (r invalidatingReader) FilteredCustomers(ctx context.Context, query string) ([]core.CustomerSummary, error) {
	if _, err := r.pages.Invalidate(ctx, "/"); err != nil {
		return nil, err
	}
	return []core.CustomerSummary{{ID: "c1", Name: "Lee Robinson"}}, nil
}

func TestPageInvalidatedDuringLoadIsNotCached(t *testing.T) {
	pages := newPages()
	srv := newStubServer(t, Deps{Reader: invalidatingReader{pages: pages}, Pages: pages})

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/dashboard/customers", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))

	_, hit, _ := pages.Get(context.Background(), "/dashboard/customers")
	assert.False(t, hit)
}

func TestPersistFailureShowsGenericMessage(t *testing.T) {
	srv := newStubServer(t, Deps{Actions: stubActions{state: invoices.State{Message: invoices.MsgCreateFailed}}})

	form := url.Values{"customerId": {evilRabbit}, "amount": {"1"}, "status": {"paid"}}
	req := httptest.NewRequest(http.MethodPost, "/dashboard/invoices/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := serve(srv, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Database Error: Failed to Create Invoice.")
}

func TestDeleteFailure(t *testing.T) {
	srv := newStubServer(t, Deps{Actions: stubActions{state: invoices.State{Message: invoices.MsgDeleteFailed}}})

	rr := serve(srv, httptest.NewRequest(http.MethodPost, "/dashboard/invoices/x/delete", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Database Error: Failed to Delete Invoice.")
}

func TestLoginFatalError(t *testing.T) {
	srv := newStubServer(t, Deps{Auth: providerFunc(func(context.Context, string, auth.Credentials) error {
		return errors.New("identity backend down")
	})})

	form := url.Values{"email": {"a@b.c"}, "password": {"secret1"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := serve(srv, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), auth.MsgSomethingWrong)
}

func TestRateLimitOnPosts(t *testing.T) {
	m := metrics.New()
	srv := newStubServer(t, Deps{Metrics: m, RateLimitPerMinute: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(srv, httptest.NewRequest(http.MethodPost, "/dashboard/invoices/x/delete", nil)).Code)
	}
	assert.Equal(t, []int{http.StatusSeeOther, http.StatusSeeOther, http.StatusTooManyRequests}, codes)

	// GETs are never limited.
	assert.Equal(t, http.StatusOK, serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}
