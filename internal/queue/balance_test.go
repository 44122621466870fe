package queue

import "testing"

func TestSelectRenderEmpty(t *testing.T) {
	if got := SelectRender(nil); got != nil {
		t.Errorf("expected nil for empty queue, got %v", got)
	}
	if got := SelectRender([]*Render{}); got != nil {
		t.Errorf("expected nil for empty queue, got %v", got)
	}
}

func TestSelectRenderAllDrained(t *testing.T) {
	drained := NewRender("user-1", "render-1", "file-1", 1, 1, 2, 1, 1, "si_1")
	for !drained.IsQueueDrained() {
		drained.AdvancePointer()
	}

	if got := SelectRender([]*Render{drained}); got != nil {
		t.Errorf("expected nil when every render is drained, got %s", got.ID)
	}
}

func TestSelectRenderSkipsDrained(t *testing.T) {
	drained := NewRender("user-1", "render-1", "file-1", 1, 1, 1, 1, 1, "si_1")
	drained.AdvancePointer()
	live := NewRender("user-2", "render-2", "file-2", 1, 1, 10, 1, 1, "si_2")

	for i := 0; i < 100; i++ {
		got := SelectRender([]*Render{drained, live})
		if got == nil {
			t.Fatal("expected a render")
		}
		if got.ID != "render-2" {
			t.Fatalf("expected the live render, got %s", got.ID)
		}
	}
}

func TestSelectRenderUniform(t *testing.T) {
	renders := []*Render{
		NewRender("user-1", "render-1", "file-1", 1, 1, 10000, 1, 1, "si_1"),
		NewRender("user-2", "render-2", "file-2", 1, 1, 10000, 1, 1, "si_2"),
		NewRender("user-3", "render-3", "file-3", 1, 1, 10000, 1, 1, "si_3"),
	}

	const draws = 10000
	counts := make(map[string]int)
	for i := 0; i < draws; i++ {
		r := SelectRender(renders)
		if r == nil {
			t.Fatal("expected a render")
		}
		counts[r.ID]++
	}

	// Uniform over 3 renders: ~3333 each. The tolerance is wide enough
	// that a fair selection practically never trips it.
	for id, count := range counts {
		if count < 2500 || count > 4200 {
			t.Errorf("expected ~%d selections for %s, got %d", draws/3, id, count)
		}
	}
	if len(counts) != 3 {
		t.Errorf("expected all 3 renders selected, got %d", len(counts))
	}
}
