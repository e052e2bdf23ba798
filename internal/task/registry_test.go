package task

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formaworks/forma-api/internal/domain"
)

func testRequest() domain.GenerateRequest {
	req := domain.GenerateRequest{Prompt: "red chair"}
	req.Normalize()
	return req
}

func TestRegistryCreate(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	created := r.Create(testRequest())

	require.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, domain.TaskStatusPending, created.Status)
	assert.Equal(t, 0, created.Progress)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Nil(t, created.CompletedAt)

	got, err := r.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "red chair", got.Request.Prompt)
}

func TestRegistryGetUnknown(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	_, err := r.Get(uuid.New())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRegistryLifecycle(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	created := r.Create(testRequest())
	id := created.ID

	r.MarkProcessing(id, 10)
	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)
	assert.Equal(t, 10, got.Progress)

	r.UpdateProgress(id, 30)
	got, _ = r.Get(id)
	assert.Equal(t, 30, got.Progress)

	r.Complete(id, &domain.GenerationResult{TaskID: id, Provider: "meshy"})
	got, _ = r.Get(id)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Result)
	require.NotNil(t, got.CompletedAt)
}

func TestRegistryProgressMonotonic(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	id := r.Create(testRequest()).ID
	r.MarkProcessing(id, 30)

	// A lower value never decreases the observed progress.
	r.UpdateProgress(id, 10)
	got, _ := r.Get(id)
	assert.Equal(t, 30, got.Progress)

	// Values above 100 are capped.
	r.UpdateProgress(id, 250)
	got, _ = r.Get(id)
	assert.Equal(t, 100, got.Progress)
}

func TestRegistryProgressRejectedWhenNotProcessing(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	id := r.Create(testRequest()).ID

	// Still pending: progress updates are no-ops.
	r.UpdateProgress(id, 50)
	got, _ := r.Get(id)
	assert.Equal(t, 0, got.Progress)

	r.MarkProcessing(id, 10)
	r.Fail(id, "upstream error")
	r.UpdateProgress(id, 90)
	got, _ = r.Get(id)
	assert.Equal(t, 10, got.Progress)
}

func TestRegistryTerminalStatesAreFrozen(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	id := r.Create(testRequest()).ID
	r.MarkProcessing(id, 10)

	require.True(t, r.Cancel(id))
	cancelled, _ := r.Get(id)
	require.Equal(t, domain.TaskStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CompletedAt)
	cancelledAt := *cancelled.CompletedAt

	// A provider racing past the cancellation must not resurrect the task.
	r.Complete(id, &domain.GenerationResult{TaskID: id})
	r.Fail(id, "late failure")
	r.MarkProcessing(id, 50)
	r.UpdateProgress(id, 99)
	r.SetProviderJobID(id, "late-job")

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCancelled, got.Status)
	assert.Equal(t, 10, got.Progress)
	assert.Nil(t, got.Result)
	assert.Empty(t, got.Error)
	assert.Empty(t, got.ProviderJobID)
	assert.Equal(t, cancelledAt, *got.CompletedAt)
}

func TestRegistryCompletedAtSetOnce(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	r.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	id := r.Create(testRequest()).ID
	r.MarkProcessing(id, 10)

	r.Fail(id, "boom")
	first, _ := r.Get(id)
	require.NotNil(t, first.CompletedAt)

	r.now = func() time.Time { return time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC) }
	r.Fail(id, "boom again")
	second, _ := r.Get(id)
	assert.Equal(t, *first.CompletedAt, *second.CompletedAt)
	assert.Equal(t, "boom", second.Error)
}

func TestRegistryCancelIdempotency(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)

	// Unknown task.
	assert.False(t, r.Cancel(uuid.New()))

	// Pending task: first cancel wins, second reports false.
	id := r.Create(testRequest()).ID
	assert.True(t, r.Cancel(id))
	assert.False(t, r.Cancel(id))

	// Already completed task cannot be cancelled.
	done := r.Create(testRequest()).ID
	r.MarkProcessing(done, 10)
	r.Complete(done, &domain.GenerationResult{TaskID: done})
	assert.False(t, r.Cancel(done))
}

func TestRegistryIsActive(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	assert.False(t, r.IsActive(uuid.New()))

	id := r.Create(testRequest()).ID
	assert.True(t, r.IsActive(id))

	r.MarkProcessing(id, 10)
	assert.True(t, r.IsActive(id))

	r.Cancel(id)
	assert.False(t, r.IsActive(id))
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	id := r.Create(testRequest()).ID
	r.MarkProcessing(id, 10)
	r.Complete(id, &domain.GenerationResult{TaskID: id, FileFormat: "obj"})

	got, err := r.Get(id)
	require.NoError(t, err)

	// Mutating the copy must not leak into the registry's record.
	got.Result.FileFormat = "glb"
	got.Progress = 0

	again, _ := r.Get(id)
	assert.Equal(t, "obj", again.Result.FileFormat)
	assert.Equal(t, 100, again.Progress)
}

func TestRegistryActiveCount(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	a := r.Create(testRequest()).ID
	b := r.Create(testRequest()).ID
	assert.Equal(t, 2, r.ActiveCount())

	r.Cancel(a)
	assert.Equal(t, 1, r.ActiveCount())

	r.MarkProcessing(b, 10)
	r.Fail(b, "boom")
	assert.Equal(t, 0, r.ActiveCount())
}
