package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// QueueStats reports the current depth of the queue.
type QueueStats interface {
	// Stats returns the number of queued renders and the jobs remaining
	// across all of them.
	Stats(ctx context.Context) (renders int, target int64, err error)
}

// Monitor periodically refreshes the queue depth gauges.
type Monitor struct {
	stats    QueueStats
	interval time.Duration
	logger   zerolog.Logger
}

// NewMonitor creates a monitor that refreshes every interval.
func NewMonitor(stats QueueStats, interval time.Duration, logger zerolog.Logger) *Monitor {
	return &Monitor{
		stats:    stats,
		interval: interval,
		logger:   logger.With().Str("component", "monitor").Logger(),
	}
}

// Run refreshes the gauges until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Initial refresh so gauges are populated right after startup.
	if err := m.refresh(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("failed to refresh queue gauges")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.refresh(ctx); err != nil {
				m.logger.Warn().Err(err).Msg("failed to refresh queue gauges")
			}
		}
	}
}

func (m *Monitor) refresh(ctx context.Context) error {
	renders, target, err := m.stats.Stats(ctx)
	if err != nil {
		return err
	}

	ActiveRenders.Set(float64(renders))
	ScaleTarget.Set(float64(target))
	return nil
}
