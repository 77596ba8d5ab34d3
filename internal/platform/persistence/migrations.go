package persistence

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/loan-lifecycle-engine/migrations"
)

// RunMigrations brings the loan schema up to date. An empty migrationsDir
// uses the schema embedded in the binary; otherwise the directory is read.
func RunMigrations(logger *slog.Logger, databaseURL, migrationsDir string) error {
	if databaseURL == "" {
		return errors.New("database URL cannot be empty")
	}

	m, err := newMigrator(databaseURL, migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			logger.Warn("Failed to close migrator", "source_error", sourceErr, "db_error", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("Schema already up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("Schema migrated", "version", version, "dirty", dirty)
	return nil
}

func newMigrator(databaseURL, migrationsDir string) (*migrate.Migrate, error) {
	if migrationsDir != "" {
		return migrate.New("file://"+migrationsDir, databaseURL)
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}
