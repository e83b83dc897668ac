package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveLineAndBatch(t *testing.T) {
	m := New()
	m.ObserveLine("applied", "updated", "fuzzy")
	m.ObserveLine("applied", "updated", "fuzzy")
	m.ObserveLine("failed", "", "")
	m.ObserveBatch(20*time.Millisecond, 3, 1)
	m.ObserveBatch(5*time.Millisecond, 2, 0)

	body := scrape(t, m)
	assert.Contains(t, body, "invoice_reconcile_partial_total 1")
	assert.Contains(t, body, `invoice_lines_total{action="updated",method="fuzzy",status="applied"} 2`)
	assert.Contains(t, body, "invoice_reconcile_duration_seconds_count 2")
	assert.Contains(t, body, "go_goroutines")
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/facturas/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/facturas/"+id, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `http_requests_total{method="GET",route="/api/facturas/{id}",status="404"} 2`)
	assert.NotContains(t, body, `route="/api/facturas/a"`)
}

func TestMiddlewareUnmatchedRoute(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {})

	for _, p := range []string{"/wp-login.php", "/x/1", "/x/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `http_requests_total{method="GET",route="unmatched",status="404"} 3`)
	assert.NotContains(t, body, "wp-login")
}
