package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/tarla/storefront/internal/checkout"
	"github.com/tarla/storefront/internal/config"
	"github.com/tarla/storefront/internal/database"
	"github.com/tarla/storefront/internal/discount"
	"github.com/tarla/storefront/internal/events"
	"github.com/tarla/storefront/internal/httpapi"
	"github.com/tarla/storefront/internal/session"
	"github.com/tarla/storefront/internal/settings"
	"github.com/tarla/storefront/internal/store"
	"github.com/tarla/storefront/internal/telemetry"
)

const sessionSweepInterval = time.Hour

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.Telemetry)
	if err != nil {
		logger.Error("failed to initialize meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Warn("failed to start runtime metrics", "error", err)
	}

	metrics, err := telemetry.NewShopMetrics()
	if err != nil {
		logger.Error("failed to create shop metrics", "error", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	logger.Info("connected to database")

	shop := store.New(db)
	sessionStore := store.NewSessionStore(db)
	sessions := session.NewManager(sessionStore, cfg.Session, logger)
	provider := settings.NewProvider(shop, cfg.Shop)

	// Left as nil interfaces when Kafka is not configured.
	var placedPublisher checkout.Publisher
	var statusPublisher httpapi.StatusPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = producer.Close() }()
		placedPublisher = producer
		statusPublisher = producer
		logger.Info("publishing order events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	handler := httpapi.NewHandler(httpapi.Deps{
		Catalog:   shop,
		Orders:    shop,
		Accounts:  shop,
		Checkout:  checkout.NewService(shop, checkout.NewNumberGenerator(), placedPublisher, metrics, logger),
		Discounts: discount.NewRegistry(shop),
		Settings:  provider,
		Sessions:  sessions,
		Metrics:   metrics,
		Logger:    logger,
	})

	var admin *httpapi.AdminHandler
	if cfg.Admin.Enabled() {
		admin = httpapi.NewAdminHandler(shop, provider, statusPublisher, cfg.Admin.Token, logger)
	} else {
		logger.Warn("ADMIN_TOKEN not set, admin routes disabled")
	}

	router := httpapi.NewRouter(handler, admin, sessions, metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: otelhttp.NewHandler(router, cfg.Telemetry.ServiceName,
			// Routed requests are renamed to their pattern by telemetry.WithHTTPRoute.
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method
			}),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepSessions(sweepCtx, sessionStore, logger)

	go func() {
		logger.Info("starting storefront", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// sweepSessions deletes expired session rows until ctx is cancelled.
func sweepSessions(ctx context.Context, sessions *store.SessionStore, logger *slog.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx)
			if err != nil {
				logger.Error("failed to delete expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("deleted expired sessions", "count", n)
			}
		}
	}
}
