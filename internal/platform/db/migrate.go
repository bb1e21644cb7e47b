package db

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/phoenix-bikes/biketrack/migrations"
)

// MigrationStatus describes the schema version recorded in the database.
type MigrationStatus struct {
	Version uint
	Dirty   bool
	Applied bool
}

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator opens a migrator against dsn using the embedded SQL files.
func NewMigrator(dsn string) (*Migrator, error) {
	return newMigrator(migrations.FS, dsn)
}

func newMigrator(source fs.FS, dsn string) (*Migrator, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("platform/db: migrate: empty database url")
	}
	d, err := iofs.New(source, ".")
	if err != nil {
		return nil, fmt.Errorf("platform/db: migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: migrate instance: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies every pending migration. It reports whether anything changed.
func (mg *Migrator) Up() (bool, error) {
	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("platform/db: migrate up: %w", err)
	}
	return true, nil
}

// Down rolls back the given number of migrations.
func (mg *Migrator) Down(steps int) error {
	if steps <= 0 {
		steps = 1
	}
	if err := mg.m.Steps(-steps); err != nil {
		return fmt.Errorf("platform/db: migrate down: %w", err)
	}
	return nil
}

// Status returns the current schema version.
func (mg *Migrator) Status() (MigrationStatus, error) {
	version, dirty, err := mg.m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return MigrationStatus{}, nil
		}
		return MigrationStatus{}, fmt.Errorf("platform/db: migrate version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty, Applied: true}, nil
}

// Close releases the source and database handles.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// MigrateUp is a convenience wrapper used at server start.
func MigrateUp(dsn string) (bool, error) {
	mg, err := NewMigrator(dsn)
	if err != nil {
		return false, err
	}
	defer func() { _ = mg.Close() }()
	return mg.Up()
}
