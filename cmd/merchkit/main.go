package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/merchkit/merchkit/config"
	"github.com/merchkit/merchkit/internal/api"
	"github.com/merchkit/merchkit/internal/auth"
	"github.com/merchkit/merchkit/internal/database"
	"github.com/merchkit/merchkit/internal/housekeeping"
	"github.com/merchkit/merchkit/internal/logger"
	"github.com/merchkit/merchkit/internal/metrics"
	middlewares "github.com/merchkit/merchkit/internal/middleware"
	"github.com/merchkit/merchkit/internal/payments"
	"github.com/merchkit/merchkit/internal/pricing"
	"github.com/merchkit/merchkit/internal/ratelimit"
	"github.com/merchkit/merchkit/internal/store"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting MerchKit application",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
	)

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close(ctx)

	// Initialize store
	st := store.New(db)

	// Redis-backed rate limiting and webhook event dedup, optional
	var limiter *ratelimit.Manager
	if cfg.Redis.URL != "" {
		limiter, err = ratelimit.NewManager(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "error", err)
		}
		defer limiter.Close()
	} else {
		logger.Info("REDIS_URL not set; checkout rate limits and event cache disabled")
	}

	// Payments wiring
	gateway := payments.NewStripeGateway(cfg.Stripe)
	resolver := pricing.NewResolver(st, nil)
	accounts := payments.NewAccountResolver(st, st, gateway)
	intents := payments.NewIntentCreator(resolver, accounts, st, st, gateway, cfg.Stripe, nil)
	reconciler := payments.NewWebhookReconciler(st, accounts, limiter, cfg.Stripe.EventCacheTTL, cfg.Stripe.WebhookSecret)

	// Merchant API keys
	keys := auth.NewService(st, cfg.Auth.KeyEnvironment)

	// Pending-order reaper
	if cfg.Housekeeping.Enabled {
		reaper := housekeeping.New(st, cfg.Housekeeping)
		go func() {
			if err := reaper.Run(ctx); err != nil && err != context.Canceled {
				logger.Error("Reaper error", "error", err)
			}
		}()
	}

	// Setup HTTP server
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.ReadTimeout))
	r.Use(middlewares.Security)

	// Initialize API handlers
	apiHandler := api.NewHandler(st, resolver, intents, reconciler, accounts, keys, limiter, cfg, Version, BuildTime, GitCommit)
	apiHandler.RegisterRoutes(r)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func startMetricsServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", "address", addr, "path", path)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", "error", err)
	}
}
