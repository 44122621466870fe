package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/framegrid/queued/internal/config"
	"github.com/framegrid/queued/internal/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Create the queue schema, tables, and indexes if they do not exist.
Safe to run repeatedly.

Example:
  queued migrate --config config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func runMigrate() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(cfg, verbose)
	ctx := context.Background()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}

	logger.Info().Msg("schema applied")
	return nil
}
