// Package bus connects the service to NATS. Render and job lifecycle events
// flow through a shared subject consumed by a worker-pool dispatcher, while
// pop and scale-target requests are served over request/reply.
package bus

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Connect dials the NATS server and keeps reconnecting for the life of the
// process.
func Connect(url string, logger zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("queued"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("bus disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("bus reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bus at %s: %w", url, err)
	}
	return nc, nil
}

func eventSubject(namespace string) string {
	return namespace + ".events"
}

func popSubject(namespace string) string {
	return namespace + ".pop"
}

func scaleTargetSubject(namespace string) string {
	return namespace + ".get_scale_target"
}
