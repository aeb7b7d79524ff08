package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wedding-ai-backend/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		DatabaseDriver:     "sqlite",
		DatabaseURL:        "file:test.db",
		CreditCostPerImage: 1,
		MaxImagesPerJob:    8,
		StaleJobThreshold:  time.Hour,
		Environment:        "development",
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.StaleJobThreshold)
	assert.Equal(t, 1, cfg.CreditCostPerImage)
	assert.True(t, cfg.UnlimitedCredits)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/wedding")
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("STALE_JOB_THRESHOLD", "30m")
	t.Setenv("CREDIT_COST_PER_IMAGE", "2")
	t.Setenv("AI_PROVIDER_RPS", "0.5")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.StaleJobThreshold)
	assert.Equal(t, 2, cfg.CreditCostPerImage)
	assert.Equal(t, 0.5, cfg.AIProviderRPS)
	assert.False(t, cfg.UnlimitedCredits)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"valid", func(c *config.Config) {}, ""},
		{"missing database url", func(c *config.Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"unknown driver", func(c *config.Config) { c.DatabaseDriver = "mysql" }, "DATABASE_DRIVER"},
		{"free images", func(c *config.Config) { c.CreditCostPerImage = 0 }, "CREDIT_COST_PER_IMAGE"},
		{"production without secrets", func(c *config.Config) { c.Environment = "production" }, "SUPABASE_JWT_SECRET"},
		{"production with unlimited credits", func(c *config.Config) {
			c.Environment = "production"
			c.SupabaseJWTSecret = "jwt"
			c.CronSecret = "cron"
			c.UnlimitedCredits = true
		}, "UNLIMITED_CREDITS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
