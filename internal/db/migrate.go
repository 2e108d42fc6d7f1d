// Package db applies the embedded schema migrations with goose.
//
// Migration files live in internal/db/migrations/ and are embedded via
// //go:embed. `labops serve` applies pending migrations on startup and
// `labops migrate` exposes status and up/down for operators.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/db/migrations"
	"github.com/labsuite/labops/internal/dbpool"
)

// Migrator wraps a goose provider bound to its own *sql.DB.
type Migrator struct {
	sqlDB    *sql.DB
	provider *goose.Provider
	log      *logrus.Logger
}

// NewMigrator opens a database/sql handle on the pool's connection string.
// A nil fsys uses the embedded migrations.
func NewMigrator(pool *dbpool.Pool, log *logrus.Logger, fsys fs.FS) (*Migrator, error) {
	if fsys == nil {
		fsys = migrations.FS
	}

	sqlDB, err := sql.Open("pgx", pool.ConnString())
	if err != nil {
		return nil, fmt.Errorf("opening sql.DB for migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("creating goose provider: %w", err)
	}

	return &Migrator{sqlDB: sqlDB, provider: provider, log: log}, nil
}

// Close releases the database/sql handle.
func (m *Migrator) Close() error {
	return m.sqlDB.Close()
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
		}

		m.log.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"file":     r.Source.Path,
			"duration": r.Duration,
		}).Info("migration applied")
	}

	if len(results) == 0 {
		m.log.Debug("all migrations already applied")
	}

	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	r, err := m.provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"version": r.Source.Version,
		"file":    r.Source.Path,
	}).Info("migration rolled back")

	return nil
}

// MigrationStatus is one row of Status output.
type MigrationStatus struct {
	Version int64
	File    string
	Applied bool
}

// Status lists every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading migration status: %w", err)
	}

	out := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationStatus{
			Version: s.Source.Version,
			File:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}

	return out, nil
}

// RunMigrations applies all pending embedded migrations.
func RunMigrations(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger) error {
	m, err := NewMigrator(pool, log, nil)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck // read-only handle.

	return m.Up(ctx)
}
