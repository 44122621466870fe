package queue

import "testing"

func TestTotalJobs(t *testing.T) {
	tests := []struct {
		name       string
		frameStart int32
		frameEnd   int32
		step       int32
		slices     int32
		expected   int32
	}{
		{"animation two slices", 1, 3, 1, 2, 6},
		{"still three slices", 5, 5, 1, 3, 3},
		{"single frame single slice", 0, 0, 1, 1, 1},
		{"stepped range", 10, 19, 3, 2, 8},
		{"range not multiple of step truncates", 1, 4, 2, 1, 2},
		{"wide range", 1, 100, 2, 4, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TotalJobs(tt.frameStart, tt.frameEnd, tt.step, tt.slices)
			if got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestNewRender(t *testing.T) {
	r := NewRender("user-1", "render-1", "file-1", 2, 10, 20, 5, 3, "si_1")

	if r.PointerFrame != 10 {
		t.Errorf("expected pointer_frame 10, got %d", r.PointerFrame)
	}
	if r.PointerSlice != 0 {
		t.Errorf("expected pointer_slice 0, got %d", r.PointerSlice)
	}
	if r.TotalJobs != 9 {
		t.Errorf("expected total_jobs 9, got %d", r.TotalJobs)
	}
	if r.CompletedJobs != 0 {
		t.Errorf("expected completed_jobs 0, got %d", r.CompletedJobs)
	}
	if !r.IsFirst() {
		t.Error("expected a fresh render to be first")
	}
	if r.IsQueueDrained() {
		t.Error("expected a fresh render not to be drained")
	}
}

func TestPointerWalk(t *testing.T) {
	r := NewRender("user-1", "render-1", "file-1", 1, 1, 3, 1, 2, "si_1")

	expected := []struct{ frame, slice int32 }{
		{1, 0}, {1, 1}, {2, 0}, {2, 1}, {3, 0}, {3, 1},
	}

	for i, want := range expected {
		if r.IsQueueDrained() {
			t.Fatalf("drained after %d coordinates, expected %d", i, len(expected))
		}

		job := r.GetJob("worker-1")
		if job == nil {
			t.Fatalf("expected a job at step %d", i)
		}
		if job.Frame != want.frame || job.Slice != want.slice {
			t.Errorf("step %d: expected (%d,%d), got (%d,%d)",
				i, want.frame, want.slice, job.Frame, job.Slice)
		}

		r.AdvancePointer()
	}

	if !r.IsQueueDrained() {
		t.Error("expected the queue to be drained after the full walk")
	}
	if job := r.GetJob("worker-1"); job != nil {
		t.Errorf("expected no job after drain, got (%d,%d)", job.Frame, job.Slice)
	}
}

func TestPointerWalkSteppedRange(t *testing.T) {
	r := NewRender("user-1", "render-1", "file-1", 1, 10, 19, 3, 1, "si_1")

	var frames []int32
	for !r.IsQueueDrained() {
		frames = append(frames, r.PointerFrame)
		r.AdvancePointer()
	}

	expected := []int32{10, 13, 16, 19}
	if len(frames) != len(expected) {
		t.Fatalf("expected %d frames, got %d", len(expected), len(frames))
	}
	for i := range expected {
		if frames[i] != expected[i] {
			t.Errorf("frame %d: expected %d, got %d", i, expected[i], frames[i])
		}
	}
}

func TestGetJobFields(t *testing.T) {
	r := NewRender("user-1", "render-1", "file-1", 7, 1, 2, 1, 4, "si_1")

	job := r.GetJob("worker-9")
	if job == nil {
		t.Fatal("expected a job")
	}
	if job.UserID != "user-1" {
		t.Errorf("expected user_id user-1, got %q", job.UserID)
	}
	if job.RenderID != "render-1" {
		t.Errorf("expected render_id render-1, got %q", job.RenderID)
	}
	if job.FileID != "file-1" || job.FileVersion != 7 {
		t.Errorf("expected file file-1 v7, got %q v%d", job.FileID, job.FileVersion)
	}
	if job.TotalSlices != 4 {
		t.Errorf("expected total_slices 4, got %d", job.TotalSlices)
	}
	if job.WorkerID != "worker-9" {
		t.Errorf("expected worker_id worker-9, got %q", job.WorkerID)
	}
}

func TestIsFirst(t *testing.T) {
	r := NewRender("user-1", "render-1", "file-1", 1, 1, 2, 1, 2, "si_1")

	if !r.IsFirst() {
		t.Error("expected fresh render to be first")
	}

	r.AdvancePointer()
	if r.IsFirst() {
		t.Error("expected advanced render not to be first")
	}
}

func TestIsStill(t *testing.T) {
	still := NewRender("user-1", "render-1", "file-1", 1, 5, 5, 1, 3, "si_1")
	if !still.IsStill() {
		t.Error("expected single-frame render to be a still")
	}

	animation := NewRender("user-1", "render-2", "file-1", 1, 1, 2, 1, 1, "si_1")
	if animation.IsStill() {
		t.Error("expected multi-frame render not to be a still")
	}
}

func TestIsComplete(t *testing.T) {
	r := NewRender("user-1", "render-1", "file-1", 1, 1, 2, 1, 1, "si_1")

	if r.IsComplete() {
		t.Error("expected fresh render not to be complete")
	}

	r.CompletedJobs = r.TotalJobs
	if !r.IsComplete() {
		t.Error("expected render with all jobs counted to be complete")
	}
}

func TestRemainingJobs(t *testing.T) {
	r := NewRender("user-1", "render-1", "file-1", 1, 1, 10, 1, 2, "si_1")
	r.CompletedJobs = 6

	if got := r.RemainingJobs(); got != 14 {
		t.Errorf("expected 14 remaining, got %d", got)
	}
}

func TestStatus(t *testing.T) {
	r := NewRender("user-1", "render-1", "file-1", 1, 1, 2, 1, 2, "si_1")

	if r.Status() != StatusPending {
		t.Errorf("expected %s, got %s", StatusPending, r.Status())
	}

	r.AdvancePointer()
	if r.Status() != StatusRunning {
		t.Errorf("expected %s, got %s", StatusRunning, r.Status())
	}
}
