package bus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/framegrid/queued/internal/event"
)

// EventBus publishes and consumes lifecycle events on a shared subject.
// Consumption uses a queue group named after the namespace so that scaled-out
// instances split the stream instead of double-processing it.
type EventBus struct {
	nc        *nats.Conn
	namespace string
	subject   string
	logger    zerolog.Logger
}

// NewEventBus creates an event bus scoped to the given namespace.
func NewEventBus(nc *nats.Conn, namespace string, logger zerolog.Logger) *EventBus {
	return &EventBus{
		nc:        nc,
		namespace: namespace,
		subject:   eventSubject(namespace),
		logger:    logger.With().Str("component", "events").Logger(),
	}
}

// Publish emits an event onto the shared subject.
func (b *EventBus) Publish(ctx context.Context, e *event.Event) error {
	data, err := event.Marshal(e)
	if err != nil {
		return err
	}

	if err := b.nc.Publish(b.subject, data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Type, err)
	}

	b.logger.Debug().Str("type", e.Type).Str("event_id", e.Header.ID).Msg("event published")
	return nil
}

// Listen subscribes to the shared subject and feeds messages into the
// dispatcher until ctx is cancelled. The subscription is drained before the
// dispatcher shuts down so accepted messages still get processed.
func (b *EventBus) Listen(ctx context.Context, d *Dispatcher) error {
	sub, err := b.nc.QueueSubscribe(b.subject, b.namespace, func(msg *nats.Msg) {
		if !d.Submit(msg) {
			b.logger.Warn().Msg("dispatcher queue full, dropping event")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.subject, err)
	}

	b.logger.Info().Str("subject", b.subject).Msg("listening for events")

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		b.logger.Warn().Err(err).Msg("failed to drain event subscription")
	}
	d.Shutdown()

	return ctx.Err()
}
