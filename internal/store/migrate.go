package store

import (
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"

	"github.com/hmans/taskgraph/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies all pending migrations for the store's driver.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations/"+s.driver)
	if err != nil {
		return errors.Wrap(err, "loading migrations")
	}

	var driver database.Driver
	switch s.driver {
	case config.DriverSQLite:
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{})
	case config.DriverPostgres:
		driver, err = postgres.WithInstance(s.db, &postgres.Config{})
	default:
		return errors.Errorf("no migrations for driver %q", s.driver)
	}
	if err != nil {
		return errors.Wrap(err, "creating migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, s.driver, driver)
	if err != nil {
		return errors.Wrap(err, "creating migrator")
	}

	// The sqlite driver closes the shared *sql.DB on Close; postgres only releases its conn.
	if s.driver == config.DriverPostgres {
		defer m.Close()
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration failed")
	}

	return nil
}
