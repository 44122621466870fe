package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/framegrid/queued/internal/bus"
	"github.com/framegrid/queued/internal/config"
)

func targetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "target",
		Short: "Ask the service for the current scale target",
		Long: `Query the running service for the number of jobs remaining across
all queued renders, the figure the autoscaler sizes the worker fleet by.

Example:
  queued target`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTarget()
		},
	}
}

func runTarget() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg, verbose)

	nc, err := bus.Connect(cfg.NATSURL, logger)
	if err != nil {
		return err
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := bus.NewClient(nc, cfg.Queue.Namespace)
	target, err := client.ScaleTarget(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%d jobs remaining\n", target)
	return nil
}
