package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/framegrid/queued/internal/event"
)

// ErrQueueEmpty is returned by Pop when no render has jobs left to hand
// out. It is benign: the worker backs off and asks again.
var ErrQueueEmpty = errors.New("queue empty")

// Publisher sends lifecycle events to the bus.
type Publisher interface {
	Publish(ctx context.Context, e *event.Event) error
}

// PopRequest asks for one job on behalf of a worker.
type PopRequest struct {
	WorkerID string `json:"worker_id"`
}

// PopResponse carries everything a worker needs to render one job.
type PopResponse struct {
	UserID             string `json:"user_id"`
	RenderID           string `json:"render_id"`
	Frame              int32  `json:"frame"`
	Slice              int32  `json:"slice"`
	FileID             string `json:"file_id"`
	FileVersion        int32  `json:"file_version"`
	TotalSlices        int32  `json:"total_slices"`
	WorkerID           string `json:"worker_id"`
	SubscriptionItemID string `json:"subscription_item_id"`
}

// ScaleTargetResponse reports the aggregate remaining work across all
// active renders.
type ScaleTargetResponse struct {
	Target int64 `json:"target"`
}

// Service owns the queue state machine: it reserves jobs for workers,
// applies terminal job events, and moves renders through their
// lifecycle. It holds no mutable state of its own; every mutation goes
// through the repositories, so concurrent activations coordinate through
// the store.
type Service struct {
	renders RenderRepository
	jobs    JobRepository
	events  Publisher
	logger  zerolog.Logger
}

// NewService creates a Service on top of the given repositories and
// event publisher.
func NewService(renders RenderRepository, jobs JobRepository, events Publisher, logger zerolog.Logger) *Service {
	return &Service{
		renders: renders,
		jobs:    jobs,
		events:  events,
		logger:  logger.With().Str("component", "queue").Logger(),
	}
}

// Pop reserves the next job of a randomly selected active render and
// hands it to the requesting worker. The first pop of a render announces
// it as running. Returns ErrQueueEmpty when no render has work left.
//
// Concurrent pops may observe the same pointer and reserve the same
// coordinate; the pointer update is last-writer-wins and the duplicate
// insert fails, which the worker handles by retrying.
func (s *Service) Pop(ctx context.Context, req PopRequest) (*PopResponse, error) {
	s.logger.Info().Str("worker_id", req.WorkerID).Msg("pop request")

	renders, err := s.renders.LoadQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	render := SelectRender(renders)
	if render == nil {
		return nil, ErrQueueEmpty
	}

	// SelectRender filtered drained renders already; keep the guard so a
	// stale snapshot cannot hand out a coordinate past the end.
	if render.IsQueueDrained() {
		return nil, ErrQueueEmpty
	}

	job := render.GetJob(req.WorkerID)
	if job == nil {
		// The pointer disagrees with the drained predicate. Drop the render
		// rather than keep handing workers a corrupt queue; the worker
		// retries against whatever remains.
		if err := s.renders.Delete(ctx, render.ID); err != nil {
			return nil, fmt.Errorf("failed to delete render %s: %w", render.ID, err)
		}
		return nil, fmt.Errorf("job pop out of range for render %s (pointer %d/%d)",
			render.ID, render.PointerFrame, render.PointerSlice)
	}

	if render.IsFirst() {
		if err := s.events.Publish(ctx, event.New(&event.RenderRunning{ID: render.ID})); err != nil {
			return nil, fmt.Errorf("failed to publish RenderRunning: %w", err)
		}
	}

	render.AdvancePointer()

	if err := s.renders.UpdatePointer(ctx, render); err != nil {
		return nil, fmt.Errorf("failed to update pointer: %w", err)
	}

	if err := s.jobs.Store(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to store job: %w", err)
	}

	if err := s.events.Publish(ctx, event.New(&event.JobRunning{
		UserID:   job.UserID,
		Frame:    job.Frame,
		Slice:    job.Slice,
		RenderID: render.ID,
		WorkerID: req.WorkerID,
	})); err != nil {
		return nil, fmt.Errorf("failed to publish JobRunning: %w", err)
	}

	resp := &PopResponse{
		UserID:             job.UserID,
		RenderID:           job.RenderID,
		Frame:              job.Frame,
		Slice:              job.Slice,
		FileID:             job.FileID,
		FileVersion:        job.FileVersion,
		TotalSlices:        job.TotalSlices,
		WorkerID:           job.WorkerID,
		SubscriptionItemID: render.SubscriptionItemID,
	}

	s.logger.Info().
		Str("render_id", resp.RenderID).
		Int32("frame", resp.Frame).
		Int32("slice", resp.Slice).
		Str("worker_id", resp.WorkerID).
		Msg("pop response")

	return resp, nil
}

// ScaleTarget sums the remaining jobs across every render in the queue.
// The autoscaler sizes the worker pool from this number; freshness is
// best-effort.
func (s *Service) ScaleTarget(ctx context.Context) (*ScaleTargetResponse, error) {
	renders, err := s.renders.LoadQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	var target int64
	for _, r := range renders {
		remaining := r.RemainingJobs()
		s.logger.Debug().
			Str("render_id", r.ID).
			Int32("total_jobs", r.TotalJobs).
			Int32("completed_jobs", r.CompletedJobs).
			Int64("remaining", remaining).
			Msg("remaining jobs")
		target += remaining
	}

	s.logger.Info().Int64("target", target).Msg("scale target")

	return &ScaleTargetResponse{Target: target}, nil
}

// Stats returns the number of active renders and the aggregate remaining
// jobs, for the operational gauges.
func (s *Service) Stats(ctx context.Context) (int, int64, error) {
	renders, err := s.renders.LoadQueue(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load queue: %w", err)
	}

	var target int64
	for _, r := range renders {
		target += r.RemainingJobs()
	}

	return len(renders), target, nil
}

// HandleRenderSubmitted materialises a submitted render into the queue
// and announces it as pending. Redelivery upserts the same row and
// resets the pointer; upstream deduplicates submissions.
func (s *Service) HandleRenderSubmitted(ctx context.Context, e *event.RenderSubmitted) error {
	s.logger.Info().
		Str("render_id", e.ID).
		Str("user_id", e.UserID).
		Int32("frame_start", e.FrameStart).
		Int32("frame_end", e.FrameEnd).
		Int32("step", e.Step).
		Int32("slices", e.Slices).
		Msg("render submitted")

	render := NewRender(e.UserID, e.ID, e.FileID, e.FileVersion,
		e.FrameStart, e.FrameEnd, e.Step, e.Slices, e.SubscriptionItemID)

	if err := s.renders.Store(ctx, render); err != nil {
		return fmt.Errorf("failed to store render: %w", err)
	}

	if err := s.events.Publish(ctx, event.New(&event.RenderPending{ID: e.ID})); err != nil {
		return fmt.Errorf("failed to publish RenderPending: %w", err)
	}

	return nil
}

// HandleRenderCancelRequested drops the render and confirms the cancel.
// Jobs already in flight stay until their own terminal events arrive;
// those handlers tolerate the missing render.
func (s *Service) HandleRenderCancelRequested(ctx context.Context, e *event.RenderCancelRequested) error {
	s.logger.Info().Str("render_id", e.ID).Msg("render cancel requested")

	if err := s.renders.Delete(ctx, e.ID); err != nil {
		return fmt.Errorf("failed to delete render: %w", err)
	}

	if err := s.events.Publish(ctx, event.New(&event.RenderCanceled{ID: e.ID})); err != nil {
		return fmt.Errorf("failed to publish RenderCanceled: %w", err)
	}

	return nil
}

// HandleJobCanceled drops the in-flight job. The render is untouched: a
// canceled job never counts toward completion.
func (s *Service) HandleJobCanceled(ctx context.Context, e *event.JobCanceled) error {
	s.logger.Info().
		Str("render_id", e.RenderID).
		Int32("frame", e.Frame).
		Int32("slice", e.Slice).
		Msg("job canceled")

	if _, err := s.jobs.Delete(ctx, e.RenderID, e.Frame, e.Slice); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	return nil
}

// HandleJobComplete retires an in-flight job and advances the render's
// completion counter. When the last job lands, the render is removed and
// RenderComplete goes out.
func (s *Service) HandleJobComplete(ctx context.Context, e *event.JobComplete) error {
	s.logger.Info().
		Str("render_id", e.RenderID).
		Int32("frame", e.Frame).
		Int32("slice", e.Slice).
		Msg("job complete")

	deleted, err := s.jobs.Delete(ctx, e.RenderID, e.Frame, e.Slice)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if !deleted {
		// Redelivery: an earlier delivery already counted this job.
		return nil
	}

	render, err := s.renders.IncrementCompletedJobs(ctx, e.RenderID)
	if err != nil {
		return fmt.Errorf("failed to increment completed jobs: %w", err)
	}
	if render == nil {
		// The render was canceled while this job kept going.
		return nil
	}

	return s.finishIfComplete(ctx, render)
}

// HandleJobFailed counts a failed job like a completed one, with one
// exception: a still has no other frames, so the whole render fails on
// the spot. Animations absorb failures and finish with holes.
func (s *Service) HandleJobFailed(ctx context.Context, e *event.JobFailed) error {
	s.logger.Info().
		Str("render_id", e.RenderID).
		Int32("frame", e.Frame).
		Int32("slice", e.Slice).
		Msg("job failed")

	deleted, err := s.jobs.Delete(ctx, e.RenderID, e.Frame, e.Slice)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if !deleted {
		return nil
	}

	render, err := s.renders.IncrementCompletedJobs(ctx, e.RenderID)
	if err != nil {
		return fmt.Errorf("failed to increment completed jobs: %w", err)
	}
	if render == nil {
		return nil
	}

	if render.IsStill() {
		if err := s.renders.Delete(ctx, e.RenderID); err != nil {
			return fmt.Errorf("failed to delete render: %w", err)
		}
		if err := s.events.Publish(ctx, event.New(&event.RenderFailed{ID: e.RenderID})); err != nil {
			return fmt.Errorf("failed to publish RenderFailed: %w", err)
		}
		return nil
	}

	return s.finishIfComplete(ctx, render)
}

// finishIfComplete removes the render and emits RenderComplete once no
// job is in flight and every job has been counted.
func (s *Service) finishIfComplete(ctx context.Context, render *Render) error {
	inflight, err := s.jobs.Count(ctx, render.ID)
	if err != nil {
		return fmt.Errorf("failed to count jobs: %w", err)
	}

	if inflight != 0 || !render.IsComplete() {
		return nil
	}

	if err := s.renders.Delete(ctx, render.ID); err != nil {
		return fmt.Errorf("failed to delete render: %w", err)
	}

	if err := s.events.Publish(ctx, event.New(&event.RenderComplete{ID: render.ID})); err != nil {
		return fmt.Errorf("failed to publish RenderComplete: %w", err)
	}

	return nil
}

// Route dispatches one inbound event to its handler. The service hears
// its own outbound events on the shared subject; those and any unknown
// types are acknowledged without action.
func (s *Service) Route(ctx context.Context, e *event.Event) error {
	switch p := e.Payload.(type) {
	case *event.RenderSubmitted:
		return s.HandleRenderSubmitted(ctx, p)
	case *event.RenderCancelRequested:
		return s.HandleRenderCancelRequested(ctx, p)
	case *event.JobComplete:
		return s.HandleJobComplete(ctx, p)
	case *event.JobFailed:
		return s.HandleJobFailed(ctx, p)
	case *event.JobCanceled:
		return s.HandleJobCanceled(ctx, p)
	default:
		return nil
	}
}
