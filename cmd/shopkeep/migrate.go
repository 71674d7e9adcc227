// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package main

import (
	"fmt"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/shopkeep/shopkeep/internal/store"
)

// Migrator is the subset of store.Migrator driven by the migrate command.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Close() error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
}

// migratorFactory is replaced in tests.
var migratorFactory = func(url string) (Migrator, error) {
	return store.NewMigrator(url)
}

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back and inspect the PostgreSQL schema migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, _ []string, m Migrator) error {
			if err := m.Up(); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
			}
			cmd.Println("Migrations applied")
			return nil
		}),
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all, or --steps N)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, _ []string, m Migrator) error {
			steps, err := cmd.Flags().GetInt("steps")
			if err != nil {
				return oops.Code("MIGRATION_FAILED").Wrap(err)
			}
			if steps < 0 {
				return oops.Code("INVALID_STEPS").With("steps", steps).Errorf("steps must not be negative")
			}
			if steps == 0 {
				err = m.Down()
			} else {
				err = m.Steps(-steps)
			}
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
			}
			cmd.Println("Migrations rolled back")
			return nil
		}),
	}
	down.Flags().Int("steps", 0, "number of migrations to roll back (0 = all)")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, _ []string, m Migrator) error {
			v, dirty, err := m.Version()
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
			}
			cmd.Println(formatSchemaVersion(v, dirty))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Force the recorded schema version and clear the dirty flag. Use after
repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, args []string, m Migrator) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "force version").With("version", v).Wrap(err)
			}
			cmd.Printf("Schema version forced to %d\n", v)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, _ []string, m Migrator) error {
			applied, err := m.AppliedMigrations()
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "list applied").Wrap(err)
			}
			pending, err := m.PendingMigrations()
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "list pending").Wrap(err)
			}
			for _, v := range applied {
				cmd.Println(formatMigrationLine("applied", v))
			}
			for _, v := range pending {
				cmd.Println(formatMigrationLine("pending", v))
			}
			if len(pending) == 0 {
				cmd.Println("Schema is up to date")
			}
			return nil
		}),
	})

	return cmd
}

// withMigrator loads config, opens a migrator and closes it after fn.
func withMigrator(fn func(cmd *cobra.Command, args []string, m Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("database.url is required (set DATABASE_URL or --database-url)")
		}

		m, err := migratorFactory(cfg.Database.URL)
		if err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil && err == nil {
				err = oops.Code("MIGRATION_FAILED").With("operation", "close migrator").Wrap(closeErr)
			}
		}()

		return fn(cmd, args, m)
	}
}

// parseForceVersion validates the VERSION argument of migrate force.
func parseForceVersion(arg string) (int, error) {
	v, err := strconv.Atoi(arg)
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("version", arg).Wrap(err)
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("version", arg).Errorf("version must not be negative")
	}
	return v, nil
}

func formatSchemaVersion(v uint, dirty bool) string {
	if v == 0 && !dirty {
		return "No migrations applied"
	}
	if dirty {
		return fmt.Sprintf("Version %d (dirty)", v)
	}
	return fmt.Sprintf("Version %d", v)
}

func formatMigrationLine(state string, v uint) string {
	name, err := store.MigrationName(v)
	if err != nil || name == "" {
		name = fmt.Sprintf("%06d", v)
	}
	return fmt.Sprintf("%-8s %s", state, name)
}
