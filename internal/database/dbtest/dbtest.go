// Package dbtest provides a migrated SQLite store for tests.
package dbtest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"wedding-ai-backend/internal/database"
	"wedding-ai-backend/internal/models"
)

// NewStore opens a fresh SQLite database in t.TempDir and applies every
// migration.
func NewStore(t testing.TB) *database.Store {
	t.Helper()

	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator, err := database.NewMigrator(db, Logger())
	require.NoError(t, err)
	require.NoError(t, migrator.Run(context.Background()))

	return database.NewStore(db)
}

// CreateUser inserts a user holding balance credits.
func CreateUser(t testing.TB, store *database.Store, userID string, balance int) {
	t.Helper()

	created, err := store.Queries().CreateUser(context.Background(), &models.User{
		ID:        userID,
		Email:     userID + "@example.com",
		AICredits: balance,
	})
	require.NoError(t, err)
	require.True(t, created)
}

// Balance reads the stored balance, failing the test on error.
func Balance(t testing.TB, store *database.Store, userID string) int {
	t.Helper()

	balance, err := store.Queries().GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return balance
}

func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
