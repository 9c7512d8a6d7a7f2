package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrDirtySchema means a previous migration failed halfway and needs manual
// repair before the service may start.
var ErrDirtySchema = errors.New("postgres: schema is dirty")

func withMigrator(dsn, source string, fn func(*migrate.Migrate) error) error {
	m, err := migrate.New(source, dsn)
	if err != nil {
		return fmt.Errorf("postgres: open migrations %s: %w", source, err)
	}
	defer m.Close()
	return fn(m)
}

// RunMigrations applies pending migrations from source, a golang-migrate
// URL such as file://internal/infrastructure/postgres/migrations.
func RunMigrations(dsn, source string) error {
	return withMigrator(dsn, source, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			var dirty migrate.ErrDirty
			if errors.As(err, &dirty) {
				return fmt.Errorf("%w at version %d", ErrDirtySchema, dirty.Version)
			}
			return fmt.Errorf("postgres: migrate up: %w", err)
		}
		return nil
	})
}

// RunMigrationsDown rolls every migration back.
func RunMigrationsDown(dsn, source string) error {
	return withMigrator(dsn, source, func(m *migrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("postgres: migrate down: %w", err)
		}
		return nil
	})
}

// MigrationVersion returns the applied schema version, 0 for a fresh
// database, and whether it is dirty.
func MigrationVersion(dsn, source string) (version uint, dirty bool, err error) {
	err = withMigrator(dsn, source, func(m *migrate.Migrate) error {
		var verr error
		version, dirty, verr = m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			version, dirty = 0, false
			return nil
		}
		if verr != nil {
			return fmt.Errorf("postgres: read migration version: %w", verr)
		}
		return nil
	})
	return version, dirty, err
}
