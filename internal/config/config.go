package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// AI provider
	AIProviderBaseURL     string
	AIProviderAPIKey      string
	AIProviderRPS         float64
	AIProviderConcurrency int

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseJWTSecret     string
	SupabaseStorageBucket string

	// Database
	DatabaseDriver string
	DatabaseURL    string

	// Redis (optional)
	RedisURL string

	// Credits
	UnlimitedCredits   bool
	CreditCostPerImage int
	MaxImagesPerJob    int
	SignupBonusCredits int

	// Sweeper
	CronSecret        string
	StaleJobThreshold time.Duration
	SweepInterval     time.Duration
	SweepLockTTL      time.Duration

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string

	// Server
	Port        string
	Environment string
	BaseURL     string
}

func Load() (*Config, error) {
	// .env is optional; real deployments pass the environment directly
	_ = godotenv.Load()

	environment := getEnv("ENVIRONMENT", "development")

	cfg := &Config{
		AIProviderBaseURL:     getEnv("AI_PROVIDER_BASE_URL", "https://api.wedding-ai.example/v1/"),
		AIProviderAPIKey:      getEnv("AI_PROVIDER_API_KEY", ""),
		AIProviderRPS:         getEnvAsFloat("AI_PROVIDER_RPS", 2),
		AIProviderConcurrency: getEnvAsInt("AI_PROVIDER_CONCURRENCY", 4),

		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseJWTSecret:     getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "wedding-photos"),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		RedisURL: getEnv("REDIS_URL", ""),

		UnlimitedCredits:   getEnvAsBool("UNLIMITED_CREDITS", environment == "development"),
		CreditCostPerImage: getEnvAsInt("CREDIT_COST_PER_IMAGE", 1),
		MaxImagesPerJob:    getEnvAsInt("MAX_IMAGES_PER_JOB", 8),
		SignupBonusCredits: getEnvAsInt("SIGNUP_BONUS_CREDITS", 0),

		CronSecret:        getEnv("CRON_SECRET", ""),
		StaleJobThreshold: getEnvAsDuration("STALE_JOB_THRESHOLD", time.Hour),
		SweepInterval:     getEnvAsDuration("SWEEP_INTERVAL", 0),
		SweepLockTTL:      getEnvAsDuration("SWEEP_LOCK_TTL", 5*time.Minute),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: environment,
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.CreditCostPerImage < 1 {
		return fmt.Errorf("CREDIT_COST_PER_IMAGE must be at least 1")
	}
	if c.MaxImagesPerJob < 1 {
		return fmt.Errorf("MAX_IMAGES_PER_JOB must be at least 1")
	}
	if c.StaleJobThreshold <= 0 {
		return fmt.Errorf("STALE_JOB_THRESHOLD must be positive")
	}
	if c.IsProduction() {
		if c.SupabaseJWTSecret == "" {
			return fmt.Errorf("SUPABASE_JWT_SECRET is required")
		}
		if c.CronSecret == "" {
			return fmt.Errorf("CRON_SECRET is required")
		}
		if c.UnlimitedCredits {
			return fmt.Errorf("UNLIMITED_CREDITS cannot be enabled in production")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
