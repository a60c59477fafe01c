package http

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"acme/internal/auth"
	"acme/internal/cache"
	"acme/internal/core"
	"acme/internal/invoices"
	"acme/internal/log"
	"acme/internal/metrics"
	"acme/internal/middleware/ratelimit"
	"acme/internal/middleware/security"
	"acme/internal/middleware/trace"
	"acme/internal/validation"
	appweb "acme/web"
)

// Reader is the dashboard read path.
type Reader interface {
	Revenue(ctx context.Context) ([]core.Revenue, error)
	LatestInvoices(ctx context.Context, limit int) ([]core.InvoiceRow, error)
	CardData(ctx context.Context) (core.CardData, error)
	FilteredInvoices(ctx context.Context, query string, page int) ([]core.InvoiceRow, error)
	InvoicePages(ctx context.Context, query string) (int, error)
	InvoiceByID(ctx context.Context, id string) (core.Invoice, error)
	Customers(ctx context.Context) ([]core.Customer, error)
	FilteredCustomers(ctx context.Context, query string) ([]core.CustomerSummary, error)
}

// Actions are the invoice form actions.
type Actions interface {
	CreateInvoice(ctx context.Context, prev invoices.State, form validation.Values) invoices.State
	UpdateInvoice(ctx context.Context, id string, prev invoices.State, form validation.Values) invoices.State
	DeleteInvoice(ctx context.Context, id string) invoices.State
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators of the server. Metrics may be nil.
type Deps struct {
	Reader  Reader
	Actions Actions
	Auth    auth.Provider
	Pages   *cache.FencedStore
	DB      Pinger
	Metrics *metrics.Metrics
	Logger  *log.Logger

	RateLimitPerMinute int
}

type Server struct {
	http.Server

	reader   Reader
	actions  Actions
	auth     auth.Provider
	pages    *cache.FencedStore
	db       Pinger
	metrics  *metrics.Metrics
	logger   *log.Logger
	views    *renderer
	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// latestInvoicesLimit is how many invoices the overview lists.
const latestInvoicesLimit = 5

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Reader == nil || deps.Actions == nil || deps.Auth == nil || deps.Pages == nil {
		return nil, errors.New("http server: reader, actions, auth and pages are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	views, err := newRenderer(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}

	rlConfig := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = deps.RateLimitPerMinute
	}

	s := &Server{
		reader:   deps.Reader,
		actions:  deps.Actions,
		auth:     deps.Auth,
		pages:    deps.Pages,
		db:       deps.DB,
		metrics:  deps.Metrics,
		logger:   logger,
		views:    views,
		limiter:  ratelimit.NewLimiter(rlConfig),
		detector: security.NewDetector(logger),
	}
	retryAfter := strconv.Itoa(int(math.Ceil(60 / float64(rlConfig.RequestsPerMinute))))

	r := chi.NewRouter()
	r.Use(trace.Middleware)
	r.Use(log.Middleware(logger, trace.FromRequest))
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware)
	r.Use(log.AccessLog(s.detector.ExtractClientIP))
	r.Use(s.instrument)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RateLimited()
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError(retryAfter).Write(w)
	}, http.MethodPost))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssets(3600)).Handle("/static/*", static)
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Get("/", s.handleHome)
	r.Get("/login", s.handleLoginForm)
	r.Post("/login", s.handleLogin)

	r.Get("/dashboard", s.cached(s.dashboardPage))
	r.Get("/dashboard/customers", s.cached(s.customersPage))
	r.Get(invoices.ListingPath, s.cached(s.invoicesPage))
	r.Get(invoices.ListingPath+"/create", s.cached(s.createFormPage))
	r.Post(invoices.ListingPath+"/create", s.handleCreateInvoice)
	r.Get(invoices.ListingPath+"/{id}/edit", s.cached(s.editFormPage))
	r.Post(invoices.ListingPath+"/{id}/edit", s.handleUpdateInvoice)
	r.Post(invoices.ListingPath+"/{id}/delete", s.handleDeleteInvoice)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusNotFound, "404 Not Found", "Could not find the requested page.")
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// instrument records request latency labelled with the matched route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		s.metrics.ObserveRequest(route, r.Method, rw.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("database unreachable").Write(w)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// view is a page to render with its status.
type view struct {
	status int
	name   string
	page   page
}

// pageFunc loads the data of a GET page.
type pageFunc func(r *http.Request) (view, error)

// cached serves a GET page from the page store, rendering and storing it on
// a miss. Only 200 pages are stored. A failing store degrades to rendering.
func (s *Server) cached(load pageFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := log.FromContext(ctx)
		key := cache.Key(r.URL.Path, r.URL.RawQuery)

		body, hit, err := s.pages.Get(ctx, key)
		if err != nil {
			logger.WarnContext(ctx, "Page cache lookup failed", log.FieldError, err, "key", key)
		}
		s.metrics.CacheLookup(hit)
		if hit {
			NewHTMXResponse().Header("X-Cache", "HIT").BodyHTML(body).Write(w)
			return
		}

		epoch := s.pages.Epoch()
		v, err := load(r)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to load page",
				log.FieldError, err,
				log.FieldPath, r.URL.Path,
				log.FieldOperation, log.OpRead)
			s.renderError(w, r, http.StatusInternalServerError, "Something went wrong!", "The page could not be loaded.")
			return
		}
		body, err = s.views.render(v.name, v.page)
		if err != nil {
			s.templateFailure(w, r, err)
			return
		}
		if v.status == http.StatusOK {
			stored, err := s.pages.SetAt(ctx, key, body, epoch)
			if err != nil {
				logger.WarnContext(ctx, "Page cache store failed", log.FieldError, err, "key", key)
			} else if !stored {
				logger.DebugContext(ctx, "Page invalidated while loading, not cached", "key", key)
			}
		}
		NewHTMXResponse().Status(v.status).Header("X-Cache", "MISS").BodyHTML(body).Write(w)
	}
}

// write renders v without caching.
func (s *Server) write(w http.ResponseWriter, r *http.Request, v view) {
	body, err := s.views.render(v.name, v.page)
	if err != nil {
		s.templateFailure(w, r, err)
		return
	}
	NewHTMXResponse().Status(v.status).BodyHTML(body).Write(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, heading, message string) {
	s.write(w, r, view{
		status: status,
		name:   tmplError,
		page: page{Title: heading, Nav: true, Data: struct {
			Heading string
			Message string
		}{heading, message}},
	})
}

func (s *Server) templateFailure(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
		log.FieldError, err,
		log.FieldOperation, log.OpRender,
		log.FieldPath, r.URL.Path)
	InternalServerError(fmt.Sprintf("failed to render %s", r.URL.Path)).Write(w)
}
