package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bintangnusa/pos-backend/internal/platform/config"
	"github.com/bintangnusa/pos-backend/internal/platform/database"
	"github.com/bintangnusa/pos-backend/internal/platform/logger"
	"github.com/bintangnusa/pos-backend/internal/pos_service/adapters/events"
	httpadapter "github.com/bintangnusa/pos-backend/internal/pos_service/adapters/http"
	"github.com/bintangnusa/pos-backend/internal/pos_service/adapters/paymentgateway"
	"github.com/bintangnusa/pos-backend/internal/pos_service/app"
	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
	"github.com/bintangnusa/pos-backend/internal/pos_service/middleware"
	"github.com/bintangnusa/pos-backend/internal/pos_service/repository/postgres"
)

const (
	serviceName     = "pos-service"
	shutdownTimeout = 15 * time.Second
)

// httpLogger logs every request with slog once the handler returns.
func httpLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", ww.Status()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", chiMiddleware.GetReqID(r.Context())),
				slog.String("remote_ip", r.RemoteAddr),
			)
		}
		return http.HandlerFunc(fn)
	}
}

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	// .env is optional; containerized deployments set real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)

	appLogger.Info("POS service starting...",
		"server_port", cfg.ServerPort,
		"metrics_port", cfg.MetricsPort,
		"log_level", cfg.LogLevel,
		"gateway_production", cfg.GatewayIsProduction,
	)

	if err := database.RunMigrations(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
		appLogger.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Database migrations applied")

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL")

	transactionRepo := postgres.NewPgTransactionRepository(appLogger)
	productRepo := postgres.NewPgProductRepository(appLogger)
	sequenceRepo := postgres.NewPgInvoiceSequenceRepository(appLogger)

	var gateway domain.PaymentGatewayAdapter
	if cfg.GatewayServerKey != "" {
		gateway = paymentgateway.NewSnapGatewayAdapter(appLogger, paymentgateway.SnapConfig{
			ServerKey:    cfg.GatewayServerKey,
			ClientKey:    cfg.GatewayClientKey,
			IsProduction: cfg.GatewayIsProduction,
			FrontendURL:  cfg.FrontendURL,
		}, &http.Client{Timeout: cfg.GatewayTimeout()})
	} else {
		appLogger.Warn("No gateway server key configured; using the mock gateway adapter")
		gateway = paymentgateway.NewMockGatewayAdapter(appLogger)
	}

	var publisher app.EventPublisher
	brokers := cfg.KafkaBrokerList()
	if len(brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(brokers, cfg.KafkaTopic, appLogger)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				appLogger.Warn("Failed to close Kafka publisher", "error", err)
			}
		}()
		publisher = kafkaPublisher
		appLogger.Info("Kafka event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		publisher = events.NoopPublisher{}
		appLogger.Info("No Kafka brokers configured; transaction events disabled")
	}

	transactionService := app.NewTransactionService(
		dbPool,
		transactionRepo,
		productRepo,
		sequenceRepo,
		gateway,
		publisher,
		appLogger,
		cfg.InvoicePrefix,
		cfg.DefaultTaxPercent,
	)

	transactionHandler := httpadapter.NewTransactionHandler(transactionService, appLogger)
	webhookHandler := httpadapter.NewWebhookHandler(transactionService, appLogger)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(httpLogger(appLogger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(chiMiddleware.Timeout(60 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// The webhook authenticates by signature, everything else by JWT.
	router.Post("/payment/callback", webhookHandler.HandlePaymentCallback)
	router.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTSecret, appLogger))
		transactionHandler.RegisterRoutes(r)
	})

	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("API server listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		appLogger.Info("Metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			appLogger.Info("Shutdown signal received", "signal", sig.String())
		case <-gCtx.Done():
			return gCtx.Err()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("API server shutdown failed", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics server shutdown failed", "error", err)
		}
		mainCancel()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("POS service stopped")
}
