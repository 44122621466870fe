// Package metrics exposes Prometheus counters and gauges for the queue
// service together with the HTTP endpoint that serves them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	// Namespace prefixes every metric exported by the service.
	Namespace = "queued"

	// Common set of metric label names.
	OutcomeLabel = "outcome"
	TypeLabel    = "type"
)

// Outcome label values for pop requests.
const (
	OutcomeJob   = "job"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

var (
	// PopsTotal counts pop requests by outcome.
	PopsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "pops_total",
			Help:      "Total pop requests served, by outcome.",
		},
		[]string{OutcomeLabel},
	)

	// EventsTotal counts inbound events by type.
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_total",
			Help:      "Total events received from the bus, by type.",
		},
		[]string{TypeLabel},
	)

	// HandlerErrorsTotal counts event handler failures by event type.
	HandlerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "handler_errors_total",
			Help:      "Total event handler failures, by event type.",
		},
		[]string{TypeLabel},
	)

	// ScaleTarget mirrors the most recently computed worker scale target.
	ScaleTarget = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "scale_target",
			Help:      "Jobs remaining across all queued renders.",
		},
	)

	// ActiveRenders tracks the number of renders currently queued.
	ActiveRenders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_renders",
			Help:      "Renders currently held in the queue.",
		},
	)
)

func init() {
	prometheus.MustRegister(PopsTotal, EventsTotal, HandlerErrorsTotal, ScaleTarget, ActiveRenders)
}

// Server serves /metrics and /healthz over HTTP.
type Server struct {
	addr   string
	check  func(context.Context) error
	logger zerolog.Logger
}

// NewServer creates a metrics server. check reports whether the service's
// backing connections are healthy; a nil check makes /healthz always succeed.
func NewServer(addr string, check func(context.Context) error, logger zerolog.Logger) *Server {
	return &Server{
		addr:   addr,
		check:  check,
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Run serves until ctx is cancelled, then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info().Str("addr", s.addr).Msg("metrics server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.check != nil {
		if err := s.check(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("health check failed")
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
