package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/framegrid/queued/internal/event"
)

// MockRenderRepository is an in-memory RenderRepository for testing. It
// hands out copies, the way a real store would, so callers mutating a
// loaded render cannot touch stored state without writing it back.
type MockRenderRepository struct {
	mu sync.RWMutex

	Renders map[string]*Render // id -> render

	// Tracking calls for assertions
	Stored         []string
	PointerUpdates []string
	Deleted        []string

	// Configurable behavior
	LoadQueueErr error
	LoadErr      error
	StoreErr     error
	UpdateErr    error
	IncrementErr error
	DeleteErr    error
}

// NewMockRenderRepository creates an empty mock render repository.
func NewMockRenderRepository() *MockRenderRepository {
	return &MockRenderRepository{
		Renders: make(map[string]*Render),
	}
}

// AddRender seeds a render directly, bypassing Store tracking.
func (m *MockRenderRepository) AddRender(render *Render) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *render
	m.Renders[render.ID] = &clone
}

// Get returns the stored render for assertions, or nil.
func (m *MockRenderRepository) Get(id string) *Render {
	m.mu.RLock()
	defer m.mu.RUnlock()

	render, ok := m.Renders[id]
	if !ok {
		return nil
	}
	clone := *render
	return &clone
}

// LoadQueue implements RenderRepository.
func (m *MockRenderRepository) LoadQueue(ctx context.Context) ([]*Render, error) {
	if m.LoadQueueErr != nil {
		return nil, m.LoadQueueErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	renders := make([]*Render, 0, len(m.Renders))
	for _, r := range m.Renders {
		clone := *r
		renders = append(renders, &clone)
	}
	return renders, nil
}

// Load implements RenderRepository.
func (m *MockRenderRepository) Load(ctx context.Context, id string) (*Render, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	render, ok := m.Renders[id]
	if !ok {
		return nil, nil
	}
	clone := *render
	return &clone, nil
}

// Store implements RenderRepository.
func (m *MockRenderRepository) Store(ctx context.Context, render *Render) error {
	if m.StoreErr != nil {
		return m.StoreErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *render
	m.Renders[render.ID] = &clone
	m.Stored = append(m.Stored, render.ID)
	return nil
}

// UpdatePointer implements RenderRepository.
func (m *MockRenderRepository) UpdatePointer(ctx context.Context, render *Render) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if stored, ok := m.Renders[render.ID]; ok {
		stored.PointerFrame = render.PointerFrame
		stored.PointerSlice = render.PointerSlice
	}
	m.PointerUpdates = append(m.PointerUpdates, render.ID)
	return nil
}

// IncrementCompletedJobs implements RenderRepository.
func (m *MockRenderRepository) IncrementCompletedJobs(ctx context.Context, id string) (*Render, error) {
	if m.IncrementErr != nil {
		return nil, m.IncrementErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	render, ok := m.Renders[id]
	if !ok {
		return nil, nil
	}
	render.CompletedJobs++
	clone := *render
	return &clone, nil
}

// Delete implements RenderRepository.
func (m *MockRenderRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Renders, id)
	m.Deleted = append(m.Deleted, id)
	return nil
}

// jobKey is the natural identity of an in-flight job.
type jobKey struct {
	renderID string
	frame    int32
	slice    int32
}

// MockJobRepository is an in-memory JobRepository for testing.
type MockJobRepository struct {
	mu sync.RWMutex

	Jobs map[jobKey]*Job

	// Configurable behavior
	StoreErr  error
	DeleteErr error
	CountErr  error
}

// NewMockJobRepository creates an empty mock job repository.
func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		Jobs: make(map[jobKey]*Job),
	}
}

// Has reports whether a job row exists, for assertions.
func (m *MockJobRepository) Has(renderID string, frame, slice int32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.Jobs[jobKey{renderID, frame, slice}]
	return ok
}

// Store implements JobRepository.
func (m *MockJobRepository) Store(ctx context.Context, job *Job) error {
	if m.StoreErr != nil {
		return m.StoreErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobKey{job.RenderID, job.Frame, job.Slice}
	if _, ok := m.Jobs[key]; ok {
		return fmt.Errorf("duplicate job %s %d/%d", job.RenderID, job.Frame, job.Slice)
	}

	clone := *job
	m.Jobs[key] = &clone
	return nil
}

// Delete implements JobRepository.
func (m *MockJobRepository) Delete(ctx context.Context, renderID string, frame, slice int32) (bool, error) {
	if m.DeleteErr != nil {
		return false, m.DeleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobKey{renderID, frame, slice}
	if _, ok := m.Jobs[key]; !ok {
		return false, nil
	}
	delete(m.Jobs, key)
	return true, nil
}

// Count implements JobRepository.
func (m *MockJobRepository) Count(ctx context.Context, renderID string) (int64, error) {
	if m.CountErr != nil {
		return 0, m.CountErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for key := range m.Jobs {
		if key.renderID == renderID {
			count++
		}
	}
	return count, nil
}

// MockPublisher records published events for assertions.
type MockPublisher struct {
	mu sync.Mutex

	Events []*event.Event

	// Configurable behavior
	PublishErr error
}

// NewMockPublisher creates an empty mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish implements Publisher.
func (m *MockPublisher) Publish(ctx context.Context, e *event.Event) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Events = append(m.Events, e)
	return nil
}

// Types returns the type tags of all published events, in order.
func (m *MockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	types := make([]string, len(m.Events))
	for i, e := range m.Events {
		types[i] = e.Type
	}
	return types
}

// CountType returns how many events of one type were published.
func (m *MockPublisher) CountType(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, e := range m.Events {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// Reset clears recorded events.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Events = nil
}
