package database

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

type Migrator struct {
	db     *sqlx.DB
	dir    string
	logger *slog.Logger
}

func NewMigrator(db *sqlx.DB, logger *slog.Logger) (*Migrator, error) {
	var dir string
	switch db.DriverName() {
	case DriverPostgres:
		dir = "migrations/postgres"
	case DriverSQLite:
		dir = "migrations/sqlite"
	default:
		return nil, fmt.Errorf("no migrations for driver %q", db.DriverName())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, dir: dir, logger: logger}, nil
}

// Run applies every embedded migration not yet recorded in schema_migrations,
// each inside its own transaction.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		migrationName := entry.Name()

		applied, err := m.isMigrationApplied(ctx, migrationName)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if applied {
			m.logger.Debug("migration already applied", "name", migrationName)
			continue
		}

		migrationSQL, err := migrationsFS.ReadFile(m.dir + "/" + migrationName)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", migrationName, err)
		}

		m.logger.Info("applying migration", "name", migrationName)

		tx, err := m.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, string(migrationSQL)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", migrationName, err)
		}

		if _, err := tx.ExecContext(ctx,
			tx.Rebind("INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)"),
			migrationName, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", migrationName, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", migrationName, err)
		}
	}

	return nil
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (m *Migrator) isMigrationApplied(ctx context.Context, name string) (bool, error) {
	var count int
	err := m.db.GetContext(ctx, &count,
		m.db.Rebind("SELECT COUNT(*) FROM schema_migrations WHERE name = ?"), name)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
