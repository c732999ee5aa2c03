package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clearslot/clearslot/internal/api/router"
	"github.com/clearslot/clearslot/internal/bookings"
	appconfig "github.com/clearslot/clearslot/internal/config"
	"github.com/clearslot/clearslot/internal/events"
	"github.com/clearslot/clearslot/internal/observability/metrics"
	"github.com/clearslot/clearslot/internal/payments"
	"github.com/clearslot/clearslot/internal/practitioners"
	"github.com/clearslot/clearslot/internal/scheduling"
	"github.com/clearslot/clearslot/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clearslot API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The availability cache is an optimization; start without it.
			logger.Warn("redis unreachable, availability caching disabled", "error", err)
			redisClient = nil
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	practitionerRepo := practitioners.NewRepository(pool)
	bookingRepo := bookings.NewRepository(pool)
	processedStore := events.NewProcessedStore(pool)
	outboxStore := events.NewOutboxStore(pool)

	eventTypes, err := scheduling.NewEventTypeRegistry(cfg.SchedulingEventTypeMap)
	if err != nil {
		logger.Error("invalid event type map", "error", err)
		os.Exit(1)
	}
	knownIDs, err := practitionerRepo.ListIDs(ctx)
	if err != nil {
		logger.Error("failed to list practitioners for startup validation", "error", err)
		os.Exit(1)
	}
	if err := eventTypes.Validate(knownIDs); err != nil {
		logger.Error("event type map incomplete", "error", err)
		os.Exit(1)
	}

	schedulingClient := scheduling.NewClient(
		cfg.SchedulingBaseURL, cfg.SchedulingAPIKey, cfg.SchedulingAccountID, logger,
	)
	busyCache := scheduling.NewBusyCache(redisClient, cfg.AvailabilityCacheTTL, logger)
	calendar, err := scheduling.NewAdapter(
		schedulingClient, eventTypes, busyCache,
		cfg.SchedulingTimezone, cfg.AvailabilityWindowDays, logger,
	)
	if err != nil {
		logger.Error("failed to build scheduling adapter", "error", err)
		os.Exit(1)
	}

	successURL := cfg.CheckoutSuccessURL
	cancelURL := cfg.CheckoutCancelURL
	if cfg.PublicBaseURL != "" {
		if successURL == "" {
			successURL = cfg.PublicBaseURL + "/bookings/by-checkout-session/{CHECKOUT_SESSION_ID}"
		}
		if cancelURL == "" {
			cancelURL = cfg.PublicBaseURL
		}
	}
	checkout := payments.NewCheckoutService(
		cfg.PaymentSecretKey, successURL, cancelURL,
		cfg.Currency, cfg.CheckoutExpiry, logger,
	).WithBaseURL(cfg.PaymentBaseURL).WithDryRun(cfg.PaymentDryRun)
	refunds := payments.NewRefundService(cfg.PaymentSecretKey, logger).
		WithBaseURL(cfg.PaymentBaseURL)

	bookingService := bookings.NewService(
		practitionerRepo, bookingRepo, checkout, calendar, outboxStore,
		bookingMetrics, logger,
	)

	syncHandler := bookings.NewCalendarSyncHandler(bookingRepo, calendar, bookingMetrics, logger.Component("calendar_sync"))
	deliverer := events.NewDeliverer(outboxStore, syncHandler, logger.Component("outbox")).
		WithBatchSize(int32(cfg.CalendarSyncBatchSize)).
		WithInterval(cfg.CalendarSyncInterval)
	go deliverer.Start(ctx)

	webhookHandler := payments.NewWebhookHandler(
		cfg.PaymentWebhookSecret, bookingService, processedStore, bookingMetrics, logger,
	)

	r := router.New(&router.Config{
		Logger:               logger,
		PractitionersHandler: practitioners.NewHandler(practitionerRepo, logger),
		BookingsHandler:      bookings.NewHandler(bookingService, refunds, logger),
		WebhookHandler:       webhookHandler,
		MetricsHandler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret:      cfg.AdminJWTSecret,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		RateLimitPerSecond:   cfg.RateLimitPerSecond,
		RateLimitBurst:       cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
