package serverhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/unrolled/secure"

	"stock-recon/internal/catalog"
	"stock-recon/internal/config"
	"stock-recon/internal/httpx"
	"stock-recon/internal/metrics"
	"stock-recon/internal/middleware"
	recHnd "stock-recon/internal/reconcile/handler"
	"stock-recon/server/http/handlers"
)

// Deps: собранные в main сервисы.
type Deps struct {
	Invoices *recHnd.Handler
	Catalog  *catalog.Handler
	Metrics  *metrics.Metrics
	Health   map[string]handlers.Pinger
}

func NewRouter(cfg config.Config, logger zerolog.Logger, d Deps) *chi.Mux {
	r := chi.NewRouter()

	sec := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		IsDevelopment:      cfg.Host == "127.0.0.1" || cfg.Host == "localhost",
	})

	// порядок важен: recover -> requestID -> logging -> metrics -> secure -> cors -> limit
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(sec.Handler)
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(middleware.LimitBytes(int64(cfg.MaxUploadMB) << 20))

	r.Get("/health", handlers.Health(d.Health))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Tenant([]byte(cfg.AuthSecret)))
		api.Use(httprate.Limit(cfg.RateLimitPerMin, time.Minute,
			httprate.WithKeyFuncs(tenantKey),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "rate limit exceeded")
			}),
		))

		if d.Catalog != nil {
			d.Catalog.Routes(api)
		}
		if d.Invoices != nil {
			api.Route("/facturas", d.Invoices.Routes)
		}
	})

	return r
}

// tenantKey: лимит на магазин; без tenant: по IP.
func tenantKey(r *http.Request) (string, error) {
	if t := middleware.TenantFrom(r.Context()); t != "" {
		return "tenant:" + t, nil
	}
	return httprate.KeyByIP(r)
}
