package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/framegrid/queued/internal/config"
	"github.com/framegrid/queued/internal/postgres"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List queued renders and the jobs remaining",
		Long: `List every render currently in the queue with its pointer position,
completion counter, and phase, plus the aggregate scale target.

Example:
  queued status --config config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	renders := postgres.NewRenderRepository(pool)
	list, err := renders.LoadQueue(ctx)
	if err != nil {
		return fmt.Errorf("failed to load queue: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}

	var target int64
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RENDER\tUSER\tFRAMES\tPOINTER\tDONE\tPHASE")
	fmt.Fprintln(w, "------\t----\t------\t-------\t----\t-----")

	for _, r := range list {
		target += r.RemainingJobs()
		frames := fmt.Sprintf("%d-%d", r.FrameStart, r.FrameEnd)
		if r.Step != 1 {
			frames += fmt.Sprintf(" step %d", r.Step)
		}
		frames += fmt.Sprintf(" x%d", r.Slices)
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d/%d\t%s\n",
			r.ID, r.UserID, frames,
			r.PointerFrame, r.PointerSlice,
			r.CompletedJobs, r.TotalJobs,
			r.Status())
	}

	w.Flush()
	fmt.Printf("\n%d renders queued, %d jobs remaining\n", len(list), target)
	return nil
}
