package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/labsuite/labops/internal/db"
	"github.com/labsuite/labops/internal/dbpool"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect and apply schema migrations",
	}

	cmd.AddCommand(migrateRunCmd("up", "Apply all pending migrations", (*db.Migrator).Up))
	cmd.AddCommand(migrateRunCmd("down", "Roll back the most recent migration", (*db.Migrator).Down))
	cmd.AddCommand(migrateStatusCmd())

	return cmd
}

// withMigrator opens a pool and a migrator for the duration of fn.
func withMigrator(cmd *cobra.Command, fn func(m *db.Migrator) error) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	if cfg.InMemory() {
		return errors.New("migrations need STORE=postgres")
	}

	log := newLogger(cfg)

	pool, err := dbpool.NewPool(cmd.Context(), cfg.DatabaseURL.Value(), dbpool.Options{MaxConns: 2})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	m, err := db.NewMigrator(pool, log, nil)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck // read-only handle.

	return fn(m)
}

func migrateRunCmd(use, short string, run func(*db.Migrator, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *db.Migrator) error {
				return run(m, cmd.Context())
			})
		},
	}
}

func migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *db.Migrator) error {
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tFILE\tAPPLIED")
				for _, s := range statuses {
					fmt.Fprintf(w, "%d\t%s\t%t\n", s.Version, s.File, s.Applied)
				}

				return w.Flush()
			})
		},
	}
}
