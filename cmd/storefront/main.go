package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jayjaytrn/storefront-checkout/config"
	"github.com/jayjaytrn/storefront-checkout/internal/cache"
	"github.com/jayjaytrn/storefront-checkout/internal/checkout"
	"github.com/jayjaytrn/storefront-checkout/internal/db"
	"github.com/jayjaytrn/storefront-checkout/internal/events"
	"github.com/jayjaytrn/storefront-checkout/internal/gateway"
	"github.com/jayjaytrn/storefront-checkout/internal/handlers"
	"github.com/jayjaytrn/storefront-checkout/internal/metrics"
	"github.com/jayjaytrn/storefront-checkout/internal/middleware"
	"github.com/jayjaytrn/storefront-checkout/internal/notification"
	"github.com/jayjaytrn/storefront-checkout/internal/telemetry"
	"github.com/jayjaytrn/storefront-checkout/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const serviceName = "storefront"

func main() {
	cfg := config.GetConfig()

	logger := logging.GetSugaredLogger(cfg.Environment)
	defer logger.Sync()

	token, err := config.ResolveGatewayToken(cfg)
	if err != nil {
		logger.Fatalw("failed to resolve gateway credentials", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName, cfg)
	if err != nil {
		logger.Fatalw("failed to set up tracing", "error", err)
	}
	defer shutdownTracer(context.Background())

	database, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("failed to open order store", "error", err)
	}
	defer database.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	var preferenceCache cache.Cache
	if cfg.RedisAddress != "" {
		rc := cache.NewRedisCache(cfg.RedisAddress, serviceName)
		if err = rc.Ping(ctx); err != nil {
			logger.Warnw("redis not reachable, preference cache will retry per request", "addr", cfg.RedisAddress, "error", err)
		}
		defer rc.Close()
		preferenceCache = rc
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NatsURL != "" {
		sp, err := events.NewStanPublisher(cfg, logger)
		if err != nil {
			logger.Warnw("order events disabled", "error", err)
		} else {
			publisher = sp
		}
	}
	defer publisher.Close()

	if cfg.AuthSecret == "" {
		logger.Warn("AUTH_SECRET is empty, internal endpoints are not authenticated")
	}

	h := buildHandler(cfg, token, database, preferenceCache, publisher, m, logger)
	r := initRouter(h, cfg.AuthSecret, reg)

	srv := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infow("http listening", "addr", cfg.RunAddress, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("graceful shutdown failed", "error", err)
	}
}

// openDatabase falls back to the in-memory store when DATABASE_URI is "memory".
func openDatabase(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (db.Database, error) {
	if cfg.DatabaseURI == "" || cfg.DatabaseURI == "memory" {
		logger.Warn("using in-memory order store, orders are lost on restart")
		return db.NewMemoryStore(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return db.NewManager(connectCtx, cfg)
}

func buildHandler(
	cfg *config.Config,
	token string,
	database db.Database,
	preferenceCache cache.Cache,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
) *handlers.Handler {
	gw := gateway.NewClient(cfg, token, m, logger)
	requester := checkout.NewRequester(cfg, gw, preferenceCache, logger)

	return &handlers.Handler{
		Checkout: checkout.NewService(database, requester, logger),
		Orders:   database,
		Receiver: notification.NewReceiver(gw, database, publisher, m, logger),
		Database: database,
		Metrics:  m,
		Logger:   logger,
	}
}

func initRouter(h *handlers.Handler, authSecret string, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	internal := func(next http.HandlerFunc, extra ...middleware.Middleware) http.Handler {
		chain := append(extra,
			middleware.ReadWithCompression,
			middleware.WriteWithCompression,
			middleware.ValidateAuth(authSecret),
		)
		return middleware.Conveyor(next, h.Logger, chain...)
	}

	r.Method(http.MethodPost, `/api/checkout`, internal(h.CreateCheckout, middleware.RequireJSON))
	r.Method(http.MethodPost, `/api/orders/{id}/preference`, internal(h.RequestPreference))
	r.Method(http.MethodGet, `/api/orders/{id}`, internal(h.GetOrder))

	// Public: the gateway cannot authenticate, and wrong methods get a 405 from the handler.
	r.HandleFunc(`/api/payments/notifications`, h.PaymentNotification)

	r.Method(http.MethodGet, `/metrics`, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get(`/healthz`, h.Healthz)

	return r
}
