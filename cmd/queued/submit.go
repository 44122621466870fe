package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/framegrid/queued/internal/bus"
	"github.com/framegrid/queued/internal/config"
	"github.com/framegrid/queued/internal/event"
)

func submitCmd() *cobra.Command {
	var (
		id          string
		userID      string
		fileID      string
		fileVersion int32
		frameStart  int32
		frameEnd    int32
		step        int32
		slices      int32
		subItem     string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a render to the queue",
		Long: `Publish a render submission onto the bus, the same event the web
frontend emits. Useful for smoke tests and backfills.

Example:
  queued submit --user 6a2f... --file 9c1d... --frame-start 1 --frame-end 240 --slices 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if step < 1 {
				return fmt.Errorf("--step must be at least 1")
			}
			if slices < 1 {
				return fmt.Errorf("--slices must be at least 1")
			}
			if frameEnd < frameStart {
				return fmt.Errorf("--frame-end must not precede --frame-start")
			}
			if id == "" {
				id = uuid.NewString()
			}
			return runSubmit(&event.RenderSubmitted{
				UserID:             userID,
				ID:                 id,
				FileID:             fileID,
				FileVersion:        fileVersion,
				FrameStart:         frameStart,
				FrameEnd:           frameEnd,
				Step:               step,
				Slices:             slices,
				SubscriptionItemID: subItem,
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Render ID (default: random)")
	cmd.Flags().StringVar(&userID, "user", "", "Owning user ID")
	cmd.Flags().StringVar(&fileID, "file", "", "Scene file ID")
	cmd.Flags().Int32Var(&fileVersion, "file-version", 1, "Scene file version")
	cmd.Flags().Int32Var(&frameStart, "frame-start", 1, "First frame")
	cmd.Flags().Int32Var(&frameEnd, "frame-end", 1, "Last frame (inclusive)")
	cmd.Flags().Int32Var(&step, "step", 1, "Frame step")
	cmd.Flags().Int32Var(&slices, "slices", 1, "Slices per frame")
	cmd.Flags().StringVar(&subItem, "subscription-item", "", "Billing subscription item ID")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runSubmit(payload *event.RenderSubmitted) error {
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
	if err := events.Publish(context.Background(), event.New(payload)); err != nil {
		return err
	}

	fmt.Printf("Submitted render %s (%d frames x %d slices)\n",
		payload.ID, 1+(payload.FrameEnd-payload.FrameStart)/payload.Step, payload.Slices)
	return nil
}
