package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/framegrid/queued/internal/metrics"
	"github.com/framegrid/queued/internal/queue"
)

// errCodeQueueEmpty is the wire form of queue.ErrQueueEmpty.
const errCodeQueueEmpty = "queue_empty"

// QueueService is the request/reply surface served over the bus.
type QueueService interface {
	Pop(ctx context.Context, req queue.PopRequest) (*queue.PopResponse, error)
	ScaleTarget(ctx context.Context) (*queue.ScaleTargetResponse, error)
}

// popReplyBody frames a pop reply: exactly one of Response or Error is set.
type popReplyBody struct {
	Response *queue.PopResponse `json:"response,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type scaleTargetReplyBody struct {
	Response *queue.ScaleTargetResponse `json:"response,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// RPCServer answers pop and scale-target requests. Subscriptions join a
// queue group named after the namespace so scaled-out instances share the
// request load.
type RPCServer struct {
	nc        *nats.Conn
	namespace string
	service   QueueService
	logger    zerolog.Logger
}

// NewRPCServer creates an RPC server for the given namespace.
func NewRPCServer(nc *nats.Conn, namespace string, service QueueService, logger zerolog.Logger) *RPCServer {
	return &RPCServer{
		nc:        nc,
		namespace: namespace,
		service:   service,
		logger:    logger.With().Str("component", "rpc").Logger(),
	}
}

// Listen serves requests until ctx is cancelled.
func (s *RPCServer) Listen(ctx context.Context) error {
	popSub, err := s.nc.QueueSubscribe(popSubject(s.namespace), s.namespace, func(msg *nats.Msg) {
		go s.handlePop(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", popSubject(s.namespace), err)
	}

	targetSub, err := s.nc.QueueSubscribe(scaleTargetSubject(s.namespace), s.namespace, func(msg *nats.Msg) {
		go s.handleScaleTarget(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", scaleTargetSubject(s.namespace), err)
	}

	s.logger.Info().
		Str("pop", popSubject(s.namespace)).
		Str("scale_target", scaleTargetSubject(s.namespace)).
		Msg("serving rpc")

	<-ctx.Done()

	if err := popSub.Drain(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to drain pop subscription")
	}
	if err := targetSub.Drain(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to drain scale target subscription")
	}

	return ctx.Err()
}

func (s *RPCServer) handlePop(ctx context.Context, msg *nats.Msg) {
	reply := s.popReply(ctx, msg.Data)
	if err := msg.Respond(reply); err != nil {
		s.logger.Error().Err(err).Msg("failed to send pop reply")
	}
}

// popReply builds the reply body for a pop request.
func (s *RPCServer) popReply(ctx context.Context, data []byte) []byte {
	var req queue.PopRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			s.logger.Warn().Err(err).Msg("malformed pop request")
			return mustMarshal(popReplyBody{Error: "bad_request"})
		}
	}

	resp, err := s.service.Pop(ctx, req)
	switch {
	case errors.Is(err, queue.ErrQueueEmpty):
		metrics.PopsTotal.WithLabelValues(metrics.OutcomeEmpty).Inc()
		return mustMarshal(popReplyBody{Error: errCodeQueueEmpty})
	case err != nil:
		metrics.PopsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		s.logger.Error().Err(err).Msg("pop failed")
		return mustMarshal(popReplyBody{Error: "internal"})
	default:
		metrics.PopsTotal.WithLabelValues(metrics.OutcomeJob).Inc()
		return mustMarshal(popReplyBody{Response: resp})
	}
}

func (s *RPCServer) handleScaleTarget(ctx context.Context, msg *nats.Msg) {
	reply := s.scaleTargetReply(ctx)
	if err := msg.Respond(reply); err != nil {
		s.logger.Error().Err(err).Msg("failed to send scale target reply")
	}
}

// scaleTargetReply builds the reply body for a scale target request. The
// request carries no parameters so its body is ignored.
func (s *RPCServer) scaleTargetReply(ctx context.Context) []byte {
	resp, err := s.service.ScaleTarget(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("scale target failed")
		return mustMarshal(scaleTargetReplyBody{Error: "internal"})
	}
	return mustMarshal(scaleTargetReplyBody{Response: resp})
}

// mustMarshal encodes a reply body. The bodies contain only plain structs,
// so encoding cannot fail.
func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to encode rpc reply: %v", err))
	}
	return data
}
