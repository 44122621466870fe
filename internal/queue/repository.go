package queue

import "context"

// RenderRepository persists the set of non-terminal renders.
//
// Lookups return (nil, nil) when no row matches; errors are reserved for
// storage failures.
type RenderRepository interface {
	// LoadQueue returns every non-terminal render, in no particular order.
	LoadQueue(ctx context.Context) ([]*Render, error)

	// Load returns the render with the given id, or nil.
	Load(ctx context.Context, id string) (*Render, error)

	// Store upserts a render keyed by (user_id, id), overwriting every
	// column including the pointer and counters.
	Store(ctx context.Context, render *Render) error

	// UpdatePointer persists pointer_frame and pointer_slice for the
	// render's id. Last writer wins.
	UpdatePointer(ctx context.Context, render *Render) error

	// IncrementCompletedJobs atomically bumps completed_jobs and returns
	// the post-update render, or nil when the row is gone because the
	// render was deleted concurrently.
	IncrementCompletedJobs(ctx context.Context, id string) (*Render, error)

	// Delete removes a render. Deleting an absent render is not an error.
	Delete(ctx context.Context, id string) error
}

// JobRepository tracks in-flight jobs between pop and their terminal
// event.
type JobRepository interface {
	// Store inserts an in-flight job. A duplicate (render_id, frame,
	// slice) is an error.
	Store(ctx context.Context, job *Job) error

	// Delete removes one job and reports whether a row was actually
	// removed, so a first terminal event can be told apart from a
	// redelivery.
	Delete(ctx context.Context, renderID string, frame, slice int32) (bool, error)

	// Count returns the number of in-flight jobs for a render.
	Count(ctx context.Context, renderID string) (int64, error)
}
