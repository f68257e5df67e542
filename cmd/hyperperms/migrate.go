// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hyperperms/hyperperms/internal/store"
)

// migratorFactory builds a Migrator for a database URL. Tests swap this out.
type migratorFactory func(databaseURL string) (migrator, error)

// migrator is the Migrator surface the migrate commands need.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

func newStoreMigrator(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand with up, down and status.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
		Long:  `Migrate applies or rolls back the PostgreSQL schema for hyperperms.`,
	}

	cmd.AddCommand(newMigrateUpCmd(newStoreMigrator))
	cmd.AddCommand(newMigrateDownCmd(newStoreMigrator))
	cmd.AddCommand(newMigrateStatusCmd(newStoreMigrator))

	return cmd
}

func migrateDatabaseURL(cmd *cobra.Command) (string, error) {
	cfg, err := loadConfigFromCmd(cmd.Flags())
	if err != nil {
		// The migrate commands only need a database URL; a yaml-backend
		// config without one is the only fatal case.
		return "", err
	}
	if cfg.Storage.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("storage.database_url or DATABASE_URL is required to migrate")
	}
	return cfg.Storage.DatabaseURL, nil
}

func newMigrateUpCmd(factory migratorFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			databaseURL, err := migrateDatabaseURL(cmd)
			if err != nil {
				return err
			}
			m, err := factory(databaseURL)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
}

func newMigrateDownCmd(factory migratorFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (destroys all data)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			databaseURL, err := migrateDatabaseURL(cmd)
			if err != nil {
				return err
			}
			m, err := factory(databaseURL)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("migrations rolled back")
			return nil
		},
	}
}

func newMigrateStatusCmd(factory migratorFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			databaseURL, err := migrateDatabaseURL(cmd)
			if err != nil {
				return err
			}
			m, err := factory(databaseURL)
			if err != nil {
				return err
			}
			defer m.Close()

			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if dirty {
				cmd.Printf("version %d (dirty)\n", version)
			} else {
				cmd.Printf("version %d\n", version)
			}
			return nil
		},
	}
}
