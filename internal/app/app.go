// Package app wires configuration into the services shared by the HTTP
// server and the creditctl command.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"wedding-ai-backend/internal/config"
	"wedding-ai-backend/internal/credits"
	"wedding-ai-backend/internal/database"
	"wedding-ai-backend/internal/generation"
	"wedding-ai-backend/internal/payments"
	"wedding-ai-backend/internal/provider"
	"wedding-ai-backend/internal/realtime"
	"wedding-ai-backend/internal/supabase"
	"wedding-ai-backend/internal/sweeper"
)

type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      *database.Store
	Redis      *redis.Client
	Ledger     *credits.Ledger
	Generation *generation.Service
	Runner     *generation.Runner
	Sweeper    *sweeper.Sweeper
	Payments   *payments.Fulfiller
}

func NewLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// New opens the database, applies migrations and builds every service.
// Redis and Supabase Storage are optional; without them events are not
// published, sweeps are not locked and generated images cannot be stored.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	migrator, err := database.NewMigrator(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migrator.Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Store:  database.NewStore(db),
	}

	var publisher generation.EventPublisher
	var locker sweeper.Locker
	if cfg.RedisURL != "" {
		client, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable; realtime events and sweep locking disabled", "error", err)
		} else {
			a.Redis = client
			publisher = realtime.NewPublisher(client)
			locker = sweeper.NewRedisLocker(client, cfg.SweepLockTTL)
		}
	}

	a.Ledger = credits.NewLedger(a.Store, credits.Options{
		UnlimitedCredits: cfg.UnlimitedCredits,
		SignupBonus:      cfg.SignupBonusCredits,
	}, logger)
	if cfg.UnlimitedCredits {
		logger.Warn("unlimited credits mode enabled; balance checks report a synthetic balance")
	}

	a.Generation = generation.NewService(a.Store, generation.Options{
		CostPerImage:    cfg.CreditCostPerImage,
		MaxImagesPerJob: cfg.MaxImagesPerJob,
	}, publisher, logger)

	var images generation.ImageStore = unconfiguredStorage{}
	if cfg.SupabaseURL != "" {
		storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
		if err != nil {
			logger.Warn("storage client unavailable", "error", err)
		} else {
			images = storageClient
		}
	}

	providerClient := provider.NewClient(cfg.AIProviderBaseURL, cfg.AIProviderAPIKey, cfg.AIProviderRPS)
	a.Runner = generation.NewRunner(a.Generation, providerClient, images, cfg.AIProviderConcurrency, logger)

	a.Sweeper = sweeper.New(a.Store, a.Generation, cfg.StaleJobThreshold, locker, logger)
	a.Payments = payments.NewFulfiller(a.Store, cfg.StripeWebhookSecret, logger)

	return a, nil
}

func (a *App) Close() error {
	if a.Redis != nil {
		a.Redis.Close()
	}
	return a.Store.Close()
}

type unconfiguredStorage struct{}

func (unconfiguredStorage) UploadGeneratedImage(string, string, int, []byte, string) (string, string, error) {
	return "", "", fmt.Errorf("image storage is not configured")
}
