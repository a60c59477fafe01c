package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCounters(t *testing.T) {
	m := New()

	m.Mutation("create", ResultCommitted)
	m.Mutation("create", ResultCommitted)
	m.Mutation("update", ResultRejected)
	m.SeedRows("users", 1)
	m.SeedRows("invoices", 13)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)

	assert.Equal(t, 2.0, counterValue(t, m.MutationsTotal.WithLabelValues("create", ResultCommitted)))
	assert.Equal(t, 1.0, counterValue(t, m.MutationsTotal.WithLabelValues("update", ResultRejected)))
	assert.Equal(t, 13.0, counterValue(t, m.SeedRowsTotal.WithLabelValues("invoices")))
	assert.Equal(t, 1.0, counterValue(t, m.CacheHits))
	assert.Equal(t, 2.0, counterValue(t, m.CacheMisses))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.Mutation("create", ResultFailed)
	m.SeedRows("users", 1)
	m.CacheLookup(true)
	m.SignIn("ok")
	m.RateLimited()
	m.ObserveRequest("/", "GET", 200, time.Millisecond)
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RateLimited()
	assert.Equal(t, 1.0, counterValue(t, a.RateLimitedTotal))
	assert.Equal(t, 0.0, counterValue(t, b.RateLimitedTotal))
}

func TestHandler(t *testing.T) {
	m := New()
	m.SignIn("invalid_credentials")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `acme_auth_sign_ins_total{outcome="invalid_credentials"} 1`)
}
