package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/framegrid/queued/internal/bus"
	"github.com/framegrid/queued/internal/config"
	"github.com/framegrid/queued/internal/event"
)

func cancelCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Request cancellation of a render",
		Long: `Publish a cancellation request for a render. The service drops the
render from the queue and announces it as canceled; jobs already
handed to workers finish on their own.

Example:
  queued cancel --id 4f8a...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(id)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Render ID")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runCancel(id string) error {
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

	events := bus.NewEventBus(nc, cfg.Queue.Namespace, logger)
	if err := events.Publish(context.Background(), event.New(&event.RenderCancelRequested{ID: id})); err != nil {
		return err
	}

	fmt.Printf("Cancellation requested for render %s\n", id)
	return nil
}
