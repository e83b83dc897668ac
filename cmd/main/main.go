package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"stock-recon/internal/cache"
	"stock-recon/internal/catalog"
	"stock-recon/internal/config"
	"stock-recon/internal/events"
	"stock-recon/internal/metrics"
	recHnd "stock-recon/internal/reconcile/handler"
	recSvc "stock-recon/internal/reconcile/service"
	"stock-recon/internal/store"
	"stock-recon/internal/store/memory"
	"stock-recon/internal/store/postgres"
	serverhttp "stock-recon/server/http"
	"stock-recon/server/http/handlers"
)

func main() {
	cfg := config.Load()
	logger := config.SetupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]handlers.Pinger{}
	var closers []io.Closer

	// хранилище: postgres, если задан DATABASE_URL, иначе память с демо-каталогом
	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
		repo = pg
		health["postgres"] = pg
		closers = append(closers, pg)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store with demo catalog for tenant \"demo\"")
		repo = memory.NewSeeded("demo")
	}

	var lock recSvc.Locker = cache.NewLocalLock()
	if cfg.RedisAddr != "" {
		rl := cache.NewRedisLock(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rl.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis")
		}
		lock = rl
		health["redis"] = rl
		closers = append(closers, rl)
	}

	var pub recSvc.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		p := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		pub = p
		closers = append(closers, p)
	}

	vocab, err := recSvc.LoadVocabulary(cfg.VocabularyFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.VocabularyFile).Msg("vocabulary")
	}

	m := metrics.New()
	policy := cfg.Policy()
	matcher := recSvc.NewMatcher(vocab, policy.Threshold)
	rec := recSvc.NewReconciler(repo, matcher, policy, logger.With().Str("component", "reconcile").Logger()).WithMetrics(m)
	invoices := recSvc.NewInvoices(repo, rec, lock, pub, logger.With().Str("component", "invoices").Logger())

	r := serverhttp.NewRouter(cfg, logger, serverhttp.Deps{
		Invoices: recHnd.New(invoices, cfg.MaxUploadMB, logger),
		Catalog:  catalog.NewHandler(catalog.NewService(repo, logger), logger),
		Metrics:  m,
		Health:   health,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info().Str("addr", cfg.Addr()).Int("threshold", policy.Threshold).Float64("markup", policy.Markup).Msg("server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
	closeAll(logger, closers)
	logger.Info().Msg("bye")
}

func closeAll(logger zerolog.Logger, closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn().Err(err).Msg("close")
		}
	}
}
