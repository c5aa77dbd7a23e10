package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers the postgres:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/log"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func newMigrator(cfg config.DatabaseConfig) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create migrator: %w", utils.ErrDatabase, err)
	}
	return m, nil
}

// RunMigrations applies all pending up migrations. Cancelling ctx stops
// after the migration in progress.
func RunMigrations(ctx context.Context, cfg config.DatabaseConfig, logger *logrus.Entry) error {
	logger = log.EntryOrDiscard(logger).WithField("component", "migrate")
	logger.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"database": cfg.Name,
	}).Debug("Running database migrations")

	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: failed to run migrations: %w", utils.ErrDatabase, err)
	}

	version, dirty, err := m.Version()
	if err == nil {
		logger.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("Database schema is up to date")
	}
	return ctx.Err()
}

// MigrationStatus returns the current migration version and dirty state.
// A database with no migrations applied reports version 0.
func MigrationStatus(cfg config.DatabaseConfig, logger *logrus.Entry) (uint, bool, error) {
	logger = log.EntryOrDiscard(logger).WithField("component", "migrate")
	logger.Debug("Checking migration status")

	m, err := newMigrator(cfg)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: failed to get migration version: %w", utils.ErrDatabase, err)
	}

	logger.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Debug("Migration status retrieved")
	return version, dirty, nil
}
