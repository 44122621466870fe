package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/framegrid/queued/internal/bus"
	"github.com/framegrid/queued/internal/config"
	"github.com/framegrid/queued/internal/queue"
)

func popCmd() *cobra.Command {
	var workerID string

	cmd := &cobra.Command{
		Use:   "pop",
		Short: "Pop one job off the queue",
		Long: `Ask the running service for the next job, the same call a render
worker makes. The job is reserved for the given worker ID.

Example:
  queued pop --worker 7b3e...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workerID == "" {
				workerID = uuid.NewString()
			}
			return runPop(workerID)
		},
	}

	cmd.Flags().StringVar(&workerID, "worker", "", "Worker ID to reserve the job for (default: random)")

	return cmd
}

func runPop(workerID string) error {
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
	job, err := client.Pop(ctx, workerID)
	if errors.Is(err, queue.ErrQueueEmpty) {
		fmt.Println("Queue is empty")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Render:  %s\n", job.RenderID)
	fmt.Printf("Job:     frame %d, slice %d of %d\n", job.Frame, job.Slice, job.TotalSlices)
	fmt.Printf("File:    %s v%d\n", job.FileID, job.FileVersion)
	fmt.Printf("User:    %s\n", job.UserID)
	fmt.Printf("Worker:  %s\n", job.WorkerID)
	return nil
}
