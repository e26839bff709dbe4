package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/orderdesk/internal/app"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/postgres"
	"github.com/vladislavdragonenkov/orderdesk/internal/version"
)

const (
	envPostgresDSN = "ORDERDESK_POSTGRES_DSN"
	defaultTimeout = 30 * time.Second
)

var errDSNRequired = errors.New(envPostgresDSN + " (or --dsn) is required")

type options struct {
	dsn     string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "orderdeskctl",
		Short:         "Maintenance commands for orderdesk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "timeout for the whole command")

	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newDLQCmd())
	cmd.AddCommand(newLoadtestCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// withStore открывает postgres и передаёт его в fn под общим таймаутом.
func (o *options) withStore(cmd *cobra.Command, fn func(ctx context.Context, store *postgres.Store) error) error {
	dsn := strings.TrimSpace(o.dsn)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv(envPostgresDSN))
	}
	if dsn == "" {
		return errDSNRequired
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()
	return fn(ctx, store)
}

func newMigrateCmd(opts *options) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect schema migrations",
	}
	cmd.PersistentFlags().IntVar(&steps, "steps", 0, "number of migrations (0 = all for up, 1 for down)")

	report := func(ctx context.Context, cmd *cobra.Command, store *postgres.Store, prefix string) error {
		state, err := store.MigrationStatus(ctx)
		if err != nil {
			return fmt.Errorf("migration status failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: version=%d applied=%d pending=%d\n", prefix, state.Current, state.Applied, state.Pending)
		return nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStore(cmd, func(ctx context.Context, store *postgres.Store) error {
				if err := store.MigrateUp(ctx, steps); err != nil {
					return fmt.Errorf("migrate up failed: %w", err)
				}
				return report(ctx, cmd, store, "migrate up ok")
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStore(cmd, func(ctx context.Context, store *postgres.Store) error {
				if err := store.MigrateDown(ctx, steps); err != nil {
					return fmt.Errorf("migrate down failed: %w", err)
				}
				return report(ctx, cmd, store, "migrate down ok")
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStore(cmd, func(ctx context.Context, store *postgres.Store) error {
				return report(ctx, cmd, store, "migration status")
			})
		},
	})
	return cmd
}

func newSeedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo standard price book, products, account and draft order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStore(cmd, func(ctx context.Context, store *postgres.Store) error {
				if err := store.EnsureSchema(ctx); err != nil {
					return fmt.Errorf("apply migrations: %w", err)
				}
				seeded, err := app.SeedDemo(ctx, app.SeedStore{
					Catalog:  store.Catalog(),
					Writer:   store.Catalog(),
					Accounts: store.Accounts(),
					Orders:   store.Orders(),
				})
				if err != nil {
					return err
				}
				if !seeded {
					fmt.Fprintln(cmd.OutOrStdout(), "standard price book already exists, nothing to seed")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "demo data seeded: order %s\n", app.DemoOrderID)
				return nil
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show orderdeskctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}
}
