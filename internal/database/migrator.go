// Package database opens the SQL store and keeps its schema migrated.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Proton-105/stepbot/migrations"
)

// Migrator applies the embedded schema migrations.
type Migrator struct {
	db     *sql.DB
	driver string
	source fs.FS
	log    *slog.Logger
}

// NewMigrator constructs a Migrator for the given driver name ("sqlite" or "postgres").
func NewMigrator(db *sql.DB, driver string, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}

	return &Migrator{
		db:     db,
		driver: driver,
		source: migrations.FS,
		log:    log,
	}
}

// Up applies every pending migration. Nothing to do is not an error.
func (m *Migrator) Up() error {
	if m.db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}

	sourceDriver, err := iofs.New(m.source, ".")
	if err != nil {
		return fmt.Errorf("create embed source driver: %w", err)
	}

	dbDriver, err := m.databaseDriver()
	if err != nil {
		return err
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, m.driver, dbDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.log.Info("no database migrations to apply")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	m.log.Info("database migrations applied", slog.String("driver", m.driver))
	return nil
}

func (m *Migrator) databaseDriver() (migratedb.Driver, error) {
	switch m.driver {
	case DriverSQLite:
		drv, err := sqlite.WithInstance(m.db, &sqlite.Config{})
		if err != nil {
			return nil, fmt.Errorf("create sqlite migrate driver: %w", err)
		}
		return drv, nil
	case DriverPostgres:
		drv, err := postgres.WithInstance(m.db, &postgres.Config{})
		if err != nil {
			return nil, fmt.Errorf("create postgres migrate driver: %w", err)
		}
		return drv, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", m.driver)
	}
}

// ListMigrations returns the embedded up-migration file names in apply order.
func (m *Migrator) ListMigrations() ([]string, error) {
	entries, err := fs.ReadDir(m.source, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	return files, nil
}
