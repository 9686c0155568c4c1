package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/PostImport/internal/application"
	"github.com/JonMunkholm/PostImport/internal/config"
	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/JonMunkholm/PostImport/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "importctl",
		Short:         "Import posts and their images from CSV files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.SetupTo(cmd.ErrOrStderr(), logLevel, "text")
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newImportCmd(),
		newStatusCmd(),
		newCancelCmd(),
		newMigrateCmd(),
		newResetCmd(),
	)
	return root
}

// openApp loads configuration and wires the engine against the database.
func openApp(ctx context.Context) (*application.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	app, err := application.New(ctx, cfg, application.Options{})
	if err != nil {
		return nil, fmt.Errorf("open import engine: %w", err)
	}
	return app, nil
}

// userError replaces known engine errors with their user-facing message.
func userError(err error) error {
	if !core.IsUserFacing(err) {
		return err
	}
	return errors.New(core.FormatUserError(err))
}
