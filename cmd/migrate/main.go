package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/jameskimau/inbox-rules/internal/logger"
	"github.com/jameskimau/inbox-rules/migrations"
)

// rootOptions holds global flags for all commands
type rootOptions struct {
	DatabaseURL    string
	MigrationsPath string // empty uses the migrations embedded in the binary
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the inbox rules database schema",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.DatabaseURL == "" {
				opts.DatabaseURL = os.Getenv("DATABASE_URL")
			}
			if opts.DatabaseURL == "" {
				return errors.New("database URL is required: use --database or DATABASE_URL")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database", "", "database URL (default $DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.MigrationsPath, "path", "", "migrations directory (default: embedded migrations)")

	cmd.AddCommand(newUpCommand(opts))
	cmd.AddCommand(newDownCommand(opts))
	cmd.AddCommand(newVersionCommand(opts))
	cmd.AddCommand(newForceCommand(opts))

	return cmd
}

func open(opts *rootOptions) (*migrate.Migrate, error) {
	logger.Info("connecting to database", "migrations_path", opts.MigrationsPath)

	if opts.MigrationsPath == "" {
		return migrations.NewMigrate(opts.DatabaseURL)
	}

	m, err := migrate.New("file://"+opts.MigrationsPath, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

func newUpCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open(opts)
			if err != nil {
				return err
			}
			defer m.Close()

			err = m.Up()
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("no migrations to run, database is up to date")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			logger.Info("migrations completed")
			return nil
		},
	}
}

func newDownCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open(opts)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("failed to roll back migrations: %w", err)
			}
			logger.Info("rollback completed")
			return nil
		},
	}
}

func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open(opts)
			if err != nil {
				return err
			}
			defer m.Close()

			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", version, dirty)
			return nil
		},
	}
}

func newForceCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version number %q: %w", args[0], err)
			}

			m, err := open(opts)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Force(version); err != nil {
				return fmt.Errorf("failed to force version: %w", err)
			}
			logger.Info("forced schema version", "version", version)
			return nil
		},
	}
}
