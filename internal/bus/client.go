package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/framegrid/queued/internal/queue"
)

// Client issues pop and scale-target requests against a running service.
type Client struct {
	nc        *nats.Conn
	namespace string
}

// NewClient creates a client scoped to the given namespace.
func NewClient(nc *nats.Conn, namespace string) *Client {
	return &Client{nc: nc, namespace: namespace}
}

// Pop requests the next job for workerID. Returns queue.ErrQueueEmpty when
// no work is available.
func (c *Client) Pop(ctx context.Context, workerID string) (*queue.PopResponse, error) {
	data, err := json.Marshal(queue.PopRequest{WorkerID: workerID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode pop request: %w", err)
	}

	msg, err := c.nc.RequestWithContext(ctx, popSubject(c.namespace), data)
	if err != nil {
		return nil, fmt.Errorf("pop request failed: %w", err)
	}

	return decodePopReply(msg.Data)
}

// decodePopReply maps a pop reply back into the caller's terms, turning the
// queue_empty error code into queue.ErrQueueEmpty.
func decodePopReply(data []byte) (*queue.PopResponse, error) {
	var body popReplyBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to decode pop reply: %w", err)
	}

	switch {
	case body.Error == errCodeQueueEmpty:
		return nil, queue.ErrQueueEmpty
	case body.Error != "":
		return nil, fmt.Errorf("pop rejected: %s", body.Error)
	case body.Response == nil:
		return nil, fmt.Errorf("pop reply missing response")
	}

	return body.Response, nil
}

// ScaleTarget requests the number of jobs remaining across all renders.
func (c *Client) ScaleTarget(ctx context.Context) (int64, error) {
	msg, err := c.nc.RequestWithContext(ctx, scaleTargetSubject(c.namespace), nil)
	if err != nil {
		return 0, fmt.Errorf("scale target request failed: %w", err)
	}

	return decodeScaleTargetReply(msg.Data)
}

func decodeScaleTargetReply(data []byte) (int64, error) {
	var body scaleTargetReplyBody
	if err := json.Unmarshal(data, &body); err != nil {
		return 0, fmt.Errorf("failed to decode scale target reply: %w", err)
	}

	switch {
	case body.Error != "":
		return 0, fmt.Errorf("scale target rejected: %s", body.Error)
	case body.Response == nil:
		return 0, fmt.Errorf("scale target reply missing response")
	}

	return body.Response.Target, nil
}
