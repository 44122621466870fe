// Package queue implements the render queue: it materialises submitted
// renders into an implicit stream of frame×slice jobs, hands jobs to
// workers on demand, and drives each render through its lifecycle from
// the job-level events that come back.
package queue

// Status of a render while it sits in the queue. Terminal outcomes
// (complete, failed, canceled) are marked by row deletion plus a
// lifecycle event, never by a stored status.
const (
	StatusPending = "pending"
	StatusRunning = "running"
)

// Render is one submitted render: a frame range cut into slices, with a
// pointer marking the next (frame, slice) coordinate to hand out and a
// counter tracking how many jobs have reached a terminal event.
type Render struct {
	UserID string
	ID     string

	FileID      string
	FileVersion int32

	FrameStart int32
	FrameEnd   int32
	Step       int32
	Slices     int32

	PointerFrame int32
	PointerSlice int32

	TotalJobs     int32
	CompletedJobs int32

	SubscriptionItemID string
}

// NewRender constructs a Render with the pointer at the first coordinate
// and the job total computed from the range.
func NewRender(userID, id, fileID string, fileVersion, frameStart, frameEnd, step, slices int32, subscriptionItemID string) *Render {
	return &Render{
		UserID:             userID,
		ID:                 id,
		FileID:             fileID,
		FileVersion:        fileVersion,
		FrameStart:         frameStart,
		FrameEnd:           frameEnd,
		Step:               step,
		Slices:             slices,
		PointerFrame:       frameStart,
		PointerSlice:       0,
		TotalJobs:          TotalJobs(frameStart, frameEnd, step, slices),
		CompletedJobs:      0,
		SubscriptionItemID: subscriptionItemID,
	}
}

// TotalJobs computes how many jobs a range produces. Integer division
// truncates: a range that is not an exact multiple of step silently drops
// the partial trailing frame.
func TotalJobs(frameStart, frameEnd, step, slices int32) int32 {
	frames := 1 + (frameEnd-frameStart)/step
	return frames * slices
}

// GetJob returns the job at the current pointer for the given worker, or
// nil when the queue is drained. The pointer is not advanced.
func (r *Render) GetJob(workerID string) *Job {
	if r.IsQueueDrained() {
		return nil
	}

	return &Job{
		UserID:      r.UserID,
		RenderID:    r.ID,
		Frame:       r.PointerFrame,
		Slice:       r.PointerSlice,
		FileID:      r.FileID,
		FileVersion: r.FileVersion,
		TotalSlices: r.Slices,
		WorkerID:    workerID,
	}
}

// AdvancePointer moves the pointer to the next coordinate: slices within
// a frame first, then on to the next frame by step.
func (r *Render) AdvancePointer() {
	r.PointerSlice++
	if r.PointerSlice >= r.Slices {
		r.PointerSlice = 0
		r.PointerFrame += r.Step
	}
}

// IsQueueDrained reports whether every coordinate has been handed out.
func (r *Render) IsQueueDrained() bool {
	return r.PointerFrame > r.FrameEnd
}

// IsComplete reports whether every job has reached a terminal event.
func (r *Render) IsComplete() bool {
	return r.CompletedJobs >= r.TotalJobs
}

// IsFirst reports whether no job has been handed out yet.
func (r *Render) IsFirst() bool {
	return r.PointerFrame == r.FrameStart && r.PointerSlice == 0
}

// IsStill reports whether the render spans a single frame. A still has
// nothing to fall back on, so one failed job fails the whole render.
func (r *Render) IsStill() bool {
	return r.FrameStart == r.FrameEnd
}

// RemainingJobs returns how many jobs have not reached a terminal event,
// widened so sums across many renders cannot overflow 32 bits.
func (r *Render) RemainingJobs() int64 {
	return int64(r.TotalJobs) - int64(r.CompletedJobs)
}

// Status derives the lifecycle phase from the pointer: a render nobody
// has popped from is pending, anything else is running.
func (r *Render) Status() string {
	if r.IsFirst() {
		return StatusPending
	}
	return StatusRunning
}

// Job is one in-flight work unit, identified by (render_id, frame,
// slice). It exists from the pop that reserved it until its terminal
// event arrives.
type Job struct {
	UserID   string
	RenderID string
	Frame    int32
	Slice    int32

	FileID      string
	FileVersion int32
	TotalSlices int32
	WorkerID    string
}
