package bus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/framegrid/queued/internal/queue"
)

func newTestRPCServer() (*RPCServer, *queue.MockRenderRepository) {
	renders := queue.NewMockRenderRepository()
	jobs := queue.NewMockJobRepository()
	events := queue.NewMockPublisher()
	svc := queue.NewService(renders, jobs, events, zerolog.Nop())
	return NewRPCServer(nil, "queue", svc, zerolog.Nop()), renders
}

func TestPopReplyRoundTrip(t *testing.T) {
	s, renders := newTestRPCServer()
	renders.AddRender(queue.NewRender("user-1", "render-1", "file-1", 2, 1, 2, 1, 1, "sub-1"))

	req, err := json.Marshal(queue.PopRequest{WorkerID: "worker-9"})
	if err != nil {
		t.Fatalf("failed to encode request: %v", err)
	}

	resp, err := decodePopReply(s.popReply(context.Background(), req))
	if err != nil {
		t.Fatalf("expected a job, got error %v", err)
	}
	if resp.RenderID != "render-1" {
		t.Errorf("expected render render-1, got %s", resp.RenderID)
	}
	if resp.Frame != 1 || resp.Slice != 0 {
		t.Errorf("expected job 1/0, got %d/%d", resp.Frame, resp.Slice)
	}
	if resp.WorkerID != "worker-9" {
		t.Errorf("expected worker worker-9, got %s", resp.WorkerID)
	}
	if resp.UserID != "user-1" || resp.FileID != "file-1" || resp.FileVersion != 2 {
		t.Errorf("unexpected file fields: %+v", resp)
	}
	if resp.SubscriptionItemID != "sub-1" {
		t.Errorf("expected subscription item sub-1, got %s", resp.SubscriptionItemID)
	}
}

func TestPopReplyQueueEmpty(t *testing.T) {
	s, _ := newTestRPCServer()

	req, err := json.Marshal(queue.PopRequest{WorkerID: "worker-1"})
	if err != nil {
		t.Fatalf("failed to encode request: %v", err)
	}

	reply := s.popReply(context.Background(), req)
	if !strings.Contains(string(reply), errCodeQueueEmpty) {
		t.Errorf("expected reply to carry %q, got %s", errCodeQueueEmpty, reply)
	}

	_, err = decodePopReply(reply)
	if !errors.Is(err, queue.ErrQueueEmpty) {
		t.Errorf("expected ErrQueueEmpty, got %v", err)
	}
}

func TestPopReplyMalformedRequest(t *testing.T) {
	s, _ := newTestRPCServer()

	reply := s.popReply(context.Background(), []byte("not json"))

	_, err := decodePopReply(reply)
	if err == nil || !strings.Contains(err.Error(), "bad_request") {
		t.Errorf("expected bad_request error, got %v", err)
	}
}

func TestPopReplyRepositoryError(t *testing.T) {
	s, renders := newTestRPCServer()
	renders.LoadQueueErr = errors.New("connection lost")

	req, err := json.Marshal(queue.PopRequest{WorkerID: "worker-1"})
	if err != nil {
		t.Fatalf("failed to encode request: %v", err)
	}

	reply := s.popReply(context.Background(), req)
	if strings.Contains(string(reply), "connection lost") {
		t.Errorf("expected internal errors to stay off the wire, got %s", reply)
	}

	_, err = decodePopReply(reply)
	if err == nil || !strings.Contains(err.Error(), "internal") {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestScaleTargetReplyRoundTrip(t *testing.T) {
	s, renders := newTestRPCServer()
	renders.AddRender(queue.NewRender("user-1", "render-1", "file-1", 1, 1, 4, 1, 1, "sub-1"))
	renders.AddRender(queue.NewRender("user-2", "render-2", "file-2", 1, 1, 7, 1, 1, "sub-2"))

	target, err := decodeScaleTargetReply(s.scaleTargetReply(context.Background()))
	if err != nil {
		t.Fatalf("expected a target, got error %v", err)
	}
	if target != 11 {
		t.Errorf("expected target 11, got %d", target)
	}
}

func TestScaleTargetReplyEmpty(t *testing.T) {
	s, _ := newTestRPCServer()

	target, err := decodeScaleTargetReply(s.scaleTargetReply(context.Background()))
	if err != nil {
		t.Fatalf("expected a target, got error %v", err)
	}
	if target != 0 {
		t.Errorf("expected target 0 for an empty queue, got %d", target)
	}
}

func TestScaleTargetReplyRepositoryError(t *testing.T) {
	s, renders := newTestRPCServer()
	renders.LoadQueueErr = errors.New("connection lost")

	_, err := decodeScaleTargetReply(s.scaleTargetReply(context.Background()))
	if err == nil || !strings.Contains(err.Error(), "internal") {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestSubjects(t *testing.T) {
	if got := eventSubject("queue"); got != "queue.events" {
		t.Errorf("expected queue.events, got %s", got)
	}
	if got := popSubject("queue"); got != "queue.pop" {
		t.Errorf("expected queue.pop, got %s", got)
	}
	if got := scaleTargetSubject("queue"); got != "queue.get_scale_target" {
		t.Errorf("expected queue.get_scale_target, got %s", got)
	}
}
