package main

import (
	"fmt"

	"github.com/JonMunkholm/PostImport/internal/admin"
	"github.com/JonMunkholm/PostImport/internal/config"
	"github.com/JonMunkholm/PostImport/internal/store/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := postgres.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			version, dirty, err := postgres.Migrate(pool)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (dirty: %v)\n", version, dirty)
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := postgres.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			return postgres.MigrateDown(pool, steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

func newResetCmd() *cobra.Command {
	var (
		stateOnly bool
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete imported data",
		Long: `Deletes every imported post, term, asset row and log line, and the
active run. With --state-only only the active run is dropped, which frees a
run stuck on a lost worker. Stored image files are not removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("reset is destructive; pass --yes to confirm")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := postgres.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			r := &admin.Resetter{DB: pool}
			if stateOnly {
				err = r.ResetState(cmd.Context())
			} else {
				err = r.ResetAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reset complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&stateOnly, "state-only", false, "only drop the active run")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
