package bus

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/framegrid/queued/internal/event"
	"github.com/framegrid/queued/internal/metrics"
)

// Router handles a decoded event. Events carrying an unknown type decode to
// a nil payload and must be ignored, not rejected.
type Router interface {
	Route(ctx context.Context, e *event.Event) error
}

// Dispatcher fans inbound bus messages out to a fixed pool of workers.
type Dispatcher struct {
	router  Router
	workers int
	queue   chan *nats.Msg
	logger  zerolog.Logger
	wg      sync.WaitGroup

	mu        sync.Mutex
	accepting bool
}

// NewDispatcher creates a dispatcher with the given worker count and queue
// buffer size.
func NewDispatcher(router Router, workers, buffer int, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		router:    router,
		workers:   workers,
		queue:     make(chan *nats.Msg, buffer),
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		accepting: true,
	}
}

// Start launches the worker goroutines. ctx is handed to every handler
// invocation.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// worker drains the queue until Shutdown closes it.
func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for msg := range d.queue {
		d.process(ctx, msg)
	}
}

// Submit queues a message for processing. Returns false when the queue is
// full or the dispatcher is shutting down.
func (d *Dispatcher) Submit(msg *nats.Msg) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.accepting {
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) process(ctx context.Context, msg *nats.Msg) {
	e, err := event.Unmarshal(msg.Data)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to decode event")
		return
	}

	metrics.EventsTotal.WithLabelValues(e.Type).Inc()

	if err := d.router.Route(ctx, e); err != nil {
		metrics.HandlerErrorsTotal.WithLabelValues(e.Type).Inc()
		d.logger.Error().Err(err).
			Str("type", e.Type).
			Str("event_id", e.Header.ID).
			Msg("failed to handle event")
	}
}

// Shutdown stops accepting new messages and waits for queued work to drain.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if !d.accepting {
		d.mu.Unlock()
		return
	}
	d.accepting = false
	d.mu.Unlock()

	close(d.queue)
	d.wg.Wait()
}
