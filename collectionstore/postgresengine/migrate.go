package postgresengine

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	logMsgMigrationStatus = "checked migration status"
	logMsgMigrationsNone  = "no migrations to run"
	logMsgMigrationsDone  = "applied migrations"
	logAttrVersion        = "version"
	logAttrDirty          = "dirty"
)

// Migrate brings the records table to the latest schema version. Use stdlib.OpenDBFromPool
// to obtain a *sql.DB for a pgxpool.Pool.
func Migrate(db *sql.DB, logger collectionstore.Logger) error {
	if db == nil {
		return collectionstore.ErrNilDatabaseConnection
	}

	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	logVersion(m, logger, logMsgMigrationStatus)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			if logger != nil {
				logger.Debug(logMsgMigrationsNone)
			}
			return nil
		}

		return fmt.Errorf("unable to run migrations: %w", err)
	}

	logVersion(m, logger, logMsgMigrationsDone)

	return nil
}

// MigrateDown reverts all migrations.
func MigrateDown(db *sql.DB) error {
	if db == nil {
		return collectionstore.ErrNilDatabaseConnection
	}

	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("unable to revert migrations: %w", err)
	}

	return nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("unable to read migrations: %w", err)
	}

	dbInstance, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("unable to prepare migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbInstance)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare migrations: %w", err)
	}

	return m, nil
}

func logVersion(m *migrate.Migrate, logger collectionstore.Logger, msg string) {
	if logger == nil {
		return
	}

	version, dirty, err := m.Version()
	if err != nil {
		// ErrNilVersion on a fresh database
		logger.Info(msg, logAttrVersion, 0, logAttrDirty, false)
		return
	}

	logger.Info(msg, logAttrVersion, version, logAttrDirty, dirty)
}
