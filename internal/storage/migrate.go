package storage

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrDirtySchema is returned when a previous migration failed half-way and
// the schema needs manual repair before the ledger can start.
var ErrDirtySchema = errors.New("ledger schema is dirty")

// RunMigrations brings the ledger schema up to date and returns the
// resulting schema version.
func RunMigrations(dbURL, migrationsDir string) (uint, error) {
	m, err := migrate.New("file://"+migrationsDir, dbURL)
	if err != nil {
		return 0, fmt.Errorf("creating migrate instance: %w", err)
	}
	defer m.Close()

	if _, dirty, err := m.Version(); err == nil && dirty {
		return 0, ErrDirtySchema
	} else if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("running migrations: %w", err)
	}
	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
