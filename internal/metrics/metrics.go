package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	linesTotal      *prometheus.CounterVec
	batchDuration   prometheus.Histogram
	batchesPartial  prometheus.Counter
	httpDuration    *prometheus.HistogramVec
	httpRequestsTot *prometheus.CounterVec
}

// New: собственный реестр: go/process коллекторы + метрики сверки и HTTP.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		linesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_lines_total",
			Help: "Invoice lines processed by reconciliation",
		}, []string{"status", "action", "method"}),
		batchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoice_reconcile_duration_seconds",
			Help:    "Duration of one invoice reconciliation batch",
			Buckets: prometheus.DefBuckets,
		}),
		batchesPartial: f.NewCounter(prometheus.CounterOpts{
			Name: "invoice_reconcile_partial_total",
			Help: "Batches posted with at least one failed line",
		}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpRequestsTot: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
	}
}

// Handler: endpoint /metrics.
func (m *Metrics) Handler() http.Handler { return m.handler }

func (m *Metrics) ObserveLine(status, action, method string) {
	m.linesTotal.WithLabelValues(status, action, method).Inc()
}

func (m *Metrics) ObserveBatch(d time.Duration, _ int, failed int) {
	m.batchDuration.Observe(d.Seconds())
	if failed > 0 {
		m.batchesPartial.Inc()
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware: латентность и счётчик запросов по шаблону маршрута chi.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		// путь без маршрута в метку не попадает: иначе каждый 404 даёт новую серию
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := strconv.Itoa(sw.status)
		m.httpDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTot.WithLabelValues(r.Method, route, status).Inc()
	})
}
