package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/framegrid/queued/internal/bus"
	"github.com/framegrid/queued/internal/config"
	"github.com/framegrid/queued/internal/metrics"
	"github.com/framegrid/queued/internal/postgres"
	"github.com/framegrid/queued/internal/queue"
	"github.com/framegrid/queued/internal/retry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the queue service",
		Long: `Run the queue service: consume render and job lifecycle events,
answer pop and scale-target requests, and expose metrics.

Example:
  queued serve --config config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(cfg, verbose)

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			logger.Info().Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
			// Context cancelled, exit goroutine
		}
	}()

	// Connections come up with retry so the service rides out a slow
	// database or bus at boot.
	connOpts := retry.DefaultOptions(cfg.Retry)
	connOpts.Classifier = retry.ClassifyConnection

	pool, err := retry.DoWithResult(ctx, connOpts, func() (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	nc, err := retry.DoWithResult(ctx, connOpts, func() (*nats.Conn, error) {
		return bus.Connect(cfg.NATSURL, logger)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer nc.Close()

	renders := postgres.NewRenderRepository(pool)
	jobs := postgres.NewJobRepository(pool)
	events := bus.NewEventBus(nc, cfg.Queue.Namespace, logger)

	service := queue.NewService(renders, jobs, events, logger)

	dispatcher := bus.NewDispatcher(service, cfg.Queue.Workers, cfg.Queue.BufferSize, logger)
	dispatcher.Start(ctx)

	rpc := bus.NewRPCServer(nc, cfg.Queue.Namespace, service, logger)

	health := func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if !nc.IsConnected() {
			return errors.New("bus: not connected")
		}
		return nil
	}
	metricsSrv := metrics.NewServer(cfg.Metrics.Addr, health, logger)
	monitor := metrics.NewMonitor(service, cfg.Metrics.RefreshInterval, logger)

	logger.Info().Str("namespace", cfg.Queue.Namespace).Msg("queue service starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return events.Listen(ctx, dispatcher) })
	g.Go(func() error { return rpc.Listen(ctx) })
	g.Go(func() error { return metricsSrv.Run(ctx) })
	g.Go(func() error { return monitor.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info().Msg("exiting")
	return nil
}
