package meshy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formaworks/forma-api/internal/domain"
	"github.com/formaworks/forma-api/internal/provider"
	"github.com/formaworks/forma-api/internal/storage"
)

// fakeTracker records the progress milestones a provider reports and lets a
// test flip a task to inactive partway through.
type fakeTracker struct {
	mu       sync.Mutex
	progress []int
	jobID    string
	active   bool

	// deactivateAfterPolls flips active to false once IsActive has been
	// consulted that many times (0 = never).
	deactivateAfterChecks int
	checks                int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{active: true}
}

func (f *fakeTracker) MarkProcessing(_ uuid.UUID, progress int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, progress)
}

func (f *fakeTracker) UpdateProgress(_ uuid.UUID, progress int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, progress)
}

func (f *fakeTracker) SetProviderJobID(_ uuid.UUID, jobID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobID = jobID
}

func (f *fakeTracker) IsActive(_ uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.deactivateAfterChecks > 0 && f.checks >= f.deactivateAfterChecks {
		f.active = false
	}
	return f.active
}

func (f *fakeTracker) progressValues() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.progress...)
}

// fakeAPI serves a scripted sequence of job states.
type fakeAPI struct {
	jobID     string
	submitErr error
	states    []*JobState
	stateErrs []error
	calls     int
	modelData []byte
}

func (f *fakeAPI) SubmitJob(_ context.Context, _, _, _, _ string, _ *int64) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.jobID, nil
}

func (f *fakeAPI) JobStatus(_ context.Context, _ string) (*JobState, error) {
	i := f.calls
	f.calls++
	if i < len(f.stateErrs) && f.stateErrs[i] != nil {
		return nil, f.stateErrs[i]
	}
	if i >= len(f.states) {
		i = len(f.states) - 1
	}
	return f.states[i], nil
}

func (f *fakeAPI) Download(_ context.Context, _ string) ([]byte, error) {
	if f.modelData == nil {
		return nil, errors.New("no model data scripted")
	}
	return f.modelData, nil
}

// testProvider wires a provider whose clock advances by the poll interval
// on every simulated sleep, so timeouts need no real delay.
func testProvider(t *testing.T, api generationAPI, tracker provider.Tracker, cfg Config) *Provider {
	t.Helper()

	store, err := storage.NewLocalBackend(t.TempDir(), nil)
	require.NoError(t, err)

	p := newWithAPI(api, store, tracker, cfg, nil)

	var mu sync.Mutex
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	p.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(d)
		return nil
	}
	return p
}

func pendingStates(n int, terminal *JobState) []*JobState {
	states := make([]*JobState, 0, n+1)
	for i := 0; i < n; i++ {
		states = append(states, &JobState{Status: JobStatusInProgress})
	}
	return append(states, terminal)
}

func TestProduceSuccess(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		jobID: "job-123",
		states: pendingStates(2, &JobState{
			Status:    JobStatusSucceeded,
			ModelURLs: map[string]string{"obj": "https://assets.example.com/m.obj"},
		}),
		modelData: []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"),
	}
	tracker := newFakeTracker()
	p := testProvider(t, api, tracker, DefaultConfig())

	taskID := uuid.New()
	result, err := p.Produce(context.Background(), taskID, domain.GenerateRequest{Prompt: "red chair"})
	require.NoError(t, err)

	assert.Equal(t, taskID, result.TaskID)
	assert.Equal(t, "obj", result.FileFormat)
	assert.True(t, result.Downloadable)
	assert.Equal(t, ProviderName, result.Provider)
	assert.NotEmpty(t, result.ModelRef)
	assert.Equal(t, "job-123", tracker.jobID)

	// Milestones arrive in order and never decrease.
	assert.Equal(t, []int{10, 30, 80}, tracker.progressValues())

	// The downloaded bytes round-trip through storage.
	saved, err := p.store.Read(context.Background(), result.ModelRef)
	require.NoError(t, err)
	assert.Equal(t, api.modelData, saved)
}

func TestProducePrefersObjOverGlb(t *testing.T) {
	t.Parallel()

	state := &JobState{
		Status: JobStatusSucceeded,
		ModelURLs: map[string]string{
			"glb": "https://assets.example.com/m.glb",
			"obj": "https://assets.example.com/m.obj",
		},
	}
	url, format := state.ModelURL()
	assert.Equal(t, "https://assets.example.com/m.obj", url)
	assert.Equal(t, "obj", format)

	glbOnly := &JobState{
		Status:    JobStatusSucceeded,
		ModelURLs: map[string]string{"glb": "https://assets.example.com/m.glb"},
	}
	url, format = glbOnly.ModelURL()
	assert.Equal(t, "https://assets.example.com/m.glb", url)
	assert.Equal(t, "glb", format)
}

func TestProduceSubmitFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{submitErr: errors.New("generation API rejected submission: 402 quota exceeded")}
	p := testProvider(t, api, newFakeTracker(), DefaultConfig())

	_, err := p.Produce(context.Background(), uuid.New(), domain.GenerateRequest{Prompt: "red chair"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestProduceUpstreamFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		jobID: "job-123",
		states: pendingStates(1, &JobState{
			Status:    JobStatusFailed,
			TaskError: &JobError{Message: "nsfw prompt"},
		}),
	}
	p := testProvider(t, api, newFakeTracker(), DefaultConfig())

	_, err := p.Produce(context.Background(), uuid.New(), domain.GenerateRequest{Prompt: "red chair"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nsfw prompt")
}

func TestProduceTimeout(t *testing.T) {
	t.Parallel()

	// Status endpoint forever reports pending; the wall-clock budget must
	// convert that into a failure mentioning the timeout.
	api := &fakeAPI{
		jobID:  "job-123",
		states: []*JobState{{Status: JobStatusPending}},
	}
	cfg := Config{PollInterval: 5 * time.Second, MaxDuration: 30 * time.Second}
	p := testProvider(t, api, newFakeTracker(), cfg)

	_, err := p.Produce(context.Background(), uuid.New(), domain.GenerateRequest{Prompt: "red chair"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestProduceSkipsUnavailableStatusPolls(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		jobID: "job-123",
		stateErrs: []error{
			nil,
			ErrStatusUnavailable,
			ErrStatusUnavailable,
		},
		states: []*JobState{
			{Status: JobStatusInProgress},
			nil,
			nil,
			{Status: JobStatusSucceeded, ModelURLs: map[string]string{"obj": "https://assets.example.com/m.obj"}},
		},
		modelData: []byte("mesh"),
	}
	p := testProvider(t, api, newFakeTracker(), DefaultConfig())

	result, err := p.Produce(context.Background(), uuid.New(), domain.GenerateRequest{Prompt: "red chair"})
	require.NoError(t, err)
	assert.True(t, result.Downloadable)
}

func TestProduceObservesCancellation(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		jobID:  "job-123",
		states: []*JobState{{Status: JobStatusPending}},
	}
	tracker := newFakeTracker()
	tracker.deactivateAfterChecks = 2
	p := testProvider(t, api, tracker, DefaultConfig())

	_, err := p.Produce(context.Background(), uuid.New(), domain.GenerateRequest{Prompt: "red chair"})
	assert.ErrorIs(t, err, provider.ErrTaskCancelled)
}

func TestProduceContextCancelledDuringSleep(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		jobID:  "job-123",
		states: []*JobState{{Status: JobStatusPending}},
	}
	p := testProvider(t, api, newFakeTracker(), DefaultConfig())
	p.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	_, err := p.Produce(context.Background(), uuid.New(), domain.GenerateRequest{Prompt: "red chair"})
	assert.ErrorIs(t, err, context.Canceled)
}
