// Package event defines the envelope and payload types carried on the
// queue event subject. Inbound and outbound events share one subject;
// each consumer dispatches on the envelope's type tag and ignores the
// rest.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type tags carried in the envelope.
const (
	TypeRenderSubmitted       = "RenderSubmitted"
	TypeRenderCancelRequested = "RenderCancelRequested"
	TypeRenderPending         = "RenderPending"
	TypeRenderRunning         = "RenderRunning"
	TypeRenderComplete        = "RenderComplete"
	TypeRenderFailed          = "RenderFailed"
	TypeRenderCanceled        = "RenderCanceled"
	TypeJobRunning            = "JobRunning"
	TypeJobComplete           = "JobComplete"
	TypeJobFailed             = "JobFailed"
	TypeJobCanceled           = "JobCanceled"
)

// Header carries delivery metadata common to every event.
type Header struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// Payload is implemented by every event body.
type Payload interface {
	EventType() string
}

// Event is the envelope published on the event subject.
type Event struct {
	Header  Header  `json:"header"`
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// New wraps a payload in an envelope with a fresh header.
func New(payload Payload) *Event {
	return &Event{
		Header: Header{
			ID:        uuid.NewString(),
			Timestamp: time.Now().UTC(),
		},
		Type:    payload.EventType(),
		Payload: payload,
	}
}

// Marshal encodes an event for the wire.
func Marshal(e *Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.Type, err)
	}
	return data, nil
}

// envelope mirrors Event with the payload left raw for two-phase decoding.
type envelope struct {
	Header  Header          `json:"header"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Unmarshal decodes an envelope and its payload. A type tag this package
// does not know yields an event with a nil payload rather than an error,
// so routers can acknowledge it without acting on it.
func Unmarshal(data []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode event envelope: %w", err)
	}

	payload := newPayload(env.Type)
	if payload == nil {
		return &Event{Header: env.Header, Type: env.Type}, nil
	}

	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", env.Type, err)
	}

	return &Event{Header: env.Header, Type: env.Type, Payload: payload}, nil
}

// newPayload returns an empty payload for a type tag, or nil for unknown
// tags.
func newPayload(eventType string) Payload {
	switch eventType {
	case TypeRenderSubmitted:
		return &RenderSubmitted{}
	case TypeRenderCancelRequested:
		return &RenderCancelRequested{}
	case TypeRenderPending:
		return &RenderPending{}
	case TypeRenderRunning:
		return &RenderRunning{}
	case TypeRenderComplete:
		return &RenderComplete{}
	case TypeRenderFailed:
		return &RenderFailed{}
	case TypeRenderCanceled:
		return &RenderCanceled{}
	case TypeJobRunning:
		return &JobRunning{}
	case TypeJobComplete:
		return &JobComplete{}
	case TypeJobFailed:
		return &JobFailed{}
	case TypeJobCanceled:
		return &JobCanceled{}
	default:
		return nil
	}
}

// RenderSubmitted announces a new render to be queued.
type RenderSubmitted struct {
	UserID             string `json:"user_id"`
	ID                 string `json:"id"`
	FileID             string `json:"file_id"`
	FileVersion        int32  `json:"file_version"`
	FrameStart         int32  `json:"frame_start"`
	FrameEnd           int32  `json:"frame_end"`
	Step               int32  `json:"step"`
	Slices             int32  `json:"slices"`
	SubscriptionItemID string `json:"subscription_item_id"`
}

// EventType implements Payload.
func (*RenderSubmitted) EventType() string { return TypeRenderSubmitted }

// RenderCancelRequested asks the queue to drop a render.
type RenderCancelRequested struct {
	ID string `json:"id"`
}

// EventType implements Payload.
func (*RenderCancelRequested) EventType() string { return TypeRenderCancelRequested }

// RenderPending marks a render as queued and waiting for its first pop.
type RenderPending struct {
	ID string `json:"id"`
}

// EventType implements Payload.
func (*RenderPending) EventType() string { return TypeRenderPending }

// RenderRunning marks the first job of a render being handed out.
type RenderRunning struct {
	ID string `json:"id"`
}

// EventType implements Payload.
func (*RenderRunning) EventType() string { return TypeRenderRunning }

// RenderComplete marks a render whose jobs have all reached a terminal
// event.
type RenderComplete struct {
	ID string `json:"id"`
}

// EventType implements Payload.
func (*RenderComplete) EventType() string { return TypeRenderComplete }

// RenderFailed marks a still render whose single frame failed.
type RenderFailed struct {
	ID string `json:"id"`
}

// EventType implements Payload.
func (*RenderFailed) EventType() string { return TypeRenderFailed }

// RenderCanceled confirms a cancel request was applied.
type RenderCanceled struct {
	ID string `json:"id"`
}

// EventType implements Payload.
func (*RenderCanceled) EventType() string { return TypeRenderCanceled }

// JobRunning announces a job handed to a worker.
type JobRunning struct {
	UserID   string `json:"user_id"`
	Frame    int32  `json:"frame"`
	Slice    int32  `json:"slice"`
	RenderID string `json:"render_id"`
	WorkerID string `json:"worker_id"`
}

// EventType implements Payload.
func (*JobRunning) EventType() string { return TypeJobRunning }

// JobComplete reports a worker finishing a job.
type JobComplete struct {
	RenderID string `json:"render_id"`
	Frame    int32  `json:"frame"`
	Slice    int32  `json:"slice"`
}

// EventType implements Payload.
func (*JobComplete) EventType() string { return TypeJobComplete }

// JobFailed reports a worker giving up on a job.
type JobFailed struct {
	RenderID string `json:"render_id"`
	Frame    int32  `json:"frame"`
	Slice    int32  `json:"slice"`
}

// EventType implements Payload.
func (*JobFailed) EventType() string { return TypeJobFailed }

// JobCanceled reports a job withdrawn before its worker finished.
type JobCanceled struct {
	RenderID string `json:"render_id"`
	Frame    int32  `json:"frame"`
	Slice    int32  `json:"slice"`
}

// EventType implements Payload.
func (*JobCanceled) EventType() string { return TypeJobCanceled }
