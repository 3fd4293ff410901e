package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port        int
	DatabaseURL string
	AppURL      string
	CORSOrigins []string

	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	SupabaseURL            string
	SupabaseJWTSecret      string
	SupabaseServiceRoleKey string

	// StripeSecretKey may be empty in development; checkout then runs
	// against an in-memory gateway.
	StripeSecretKey     string
	StripeWebhookSecret string
	// StaleEventGuard rejects subscription snapshots from events older than
	// the last one applied to the same row.
	StaleEventGuard     bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "4001"))
	if err != nil {
		return nil, fmt.Errorf("PORT must be a number: %w", err)
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	supabaseURL := getEnv("SUPABASE_URL", "")
	if supabaseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}

	jwtSecret := getEnv("SUPABASE_JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}

	serviceKey := getEnv("SUPABASE_SERVICE_ROLE_KEY", "")
	if serviceKey == "" {
		return nil, fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
	}

	webhookSecret := getEnv("STRIPE_WEBHOOK_SECRET", "")
	if webhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}

	staleGuard, err := strconv.ParseBool(getEnv("STRIPE_STALE_EVENT_GUARD", "false"))
	if err != nil {
		return nil, fmt.Errorf("STRIPE_STALE_EVENT_GUARD must be a boolean: %w", err)
	}

	trustProxy, err := strconv.ParseBool(getEnv("TRUST_PROXY_HEADERS", "false"))
	if err != nil {
		return nil, fmt.Errorf("TRUST_PROXY_HEADERS must be a boolean: %w", err)
	}

	appURL := strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/")

	origins := strings.Split(getEnv("CORS_ORIGINS", appURL), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:                   port,
		DatabaseURL:            dbURL,
		AppURL:                 appURL,
		CORSOrigins:            origins,
		TrustProxyHeaders:      trustProxy,
		SupabaseURL:            supabaseURL,
		SupabaseJWTSecret:      jwtSecret,
		SupabaseServiceRoleKey: serviceKey,
		StripeSecretKey:        getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:    webhookSecret,
		StaleEventGuard:        staleGuard,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
