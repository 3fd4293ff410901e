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
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saasforge/backend/internal/config"
	"github.com/saasforge/backend/internal/handler"
	"github.com/saasforge/backend/internal/identity"
	appMiddleware "github.com/saasforge/backend/internal/middleware"
	"github.com/saasforge/backend/internal/repository"
	"github.com/saasforge/backend/internal/service"
	"github.com/saasforge/backend/pkg/payment"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env file if present (for local development)
	loadDotEnv(logger)

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Initialize database
	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database error", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := repository.RunMigrations(ctx, db); err != nil {
		logger.Error("migration error", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected and migrated")

	// Payment gateway
	var gateway payment.Gateway
	if cfg.StripeSecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.StripeSecretKey)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, checkout runs against the in-memory gateway")
		gateway = payment.NewMockGateway()
	}

	// Identity provider
	tokens := identity.NewTokenVerifier(cfg.SupabaseJWTSecret)
	idp := identity.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	// Services
	authSvc := service.NewAuthService(tokens, idp, userRepo, logger)
	customerSvc := service.NewCustomerService(customerRepo, userRepo, idp, gateway, logger)
	subSvc := service.NewSubscriptionService(subRepo, customerSvc, gateway, cfg.AppURL, cfg.StaleEventGuard, logger)
	catalogSvc := service.NewCatalogService(catalogRepo, logger)
	dispatcher := service.NewDispatcher(subSvc, catalogSvc, logger)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authSvc, cfg.AppURL)
	healthHandler := handler.NewHealthHandler(db)
	userHandler := handler.NewUserHandler(authSvc)
	webhookHandler := handler.NewWebhookHandler(payment.NewVerifier(cfg.StripeWebhookSecret), dispatcher, logger)
	plansHandler := handler.NewPlansHandler(catalogSvc)
	billingHandler := handler.NewBillingHandler(subSvc)
	adminHandler := handler.NewAdminHandler(statsRepo, subSvc)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(appMiddleware.Recovery(logger))
	r.Use(appMiddleware.Logger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health, metrics and the provider webhook sit outside the per-IP limiter;
	// the provider delivers bursts from a small set of addresses.
	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/stripe/webhook", webhookHandler.HandleStripe)

	// 20 req/sec per client with a burst of 40; payment provider calls get the strict budget
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	defer globalRL.Stop()
	strictRL := appMiddleware.StrictRateLimiter()
	defer strictRL.Stop()

	r.Group(func(r chi.Router) {
		r.Use(globalRL.Middleware())

		// Public routes
		r.Get("/api/plans", plansHandler.List)
		r.Get("/api/auth/confirm", authHandler.Confirm)

		// Protected API routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.Auth(authSvc))

			// Auth
			r.Post("/api/auth/logout", authHandler.Logout)

			// Current user
			r.Get("/api/user", userHandler.Get)
			r.Put("/api/user", userHandler.Update)
			r.Delete("/api/user", userHandler.Delete)

			// Billing
			r.Get("/api/subscription", billingHandler.GetSubscription)
			r.Group(func(r chi.Router) {
				r.Use(strictRL.Middleware())
				r.Post("/api/stripe/create-checkout-session", billingHandler.CreateCheckout)
				r.Post("/api/stripe/create-portal-session", billingHandler.CreatePortal)
			})

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.AdminOnly)
				r.Get("/api/admin/stats", adminHandler.GetStats)
				r.Get("/api/admin/subscriptions/{id}", adminHandler.GetSubscription)
			})
		})
	})

	// Start server
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("billing backend listening", "addr", addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file if it exists. Variables already set in the
// environment win.
func loadDotEnv(logger *slog.Logger) {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}
}
