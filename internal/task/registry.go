package task

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/domain"
)

// ErrTaskNotFound is returned when the requested task does not exist.
// An unknown task is a distinct condition from a failed one.
var ErrTaskNotFound = errors.New("task not found")

// Registry owns the authoritative state machine for every in-flight or
// completed task. All access goes through its methods so the terminal-state
// invariants are enforced centrally: once a task reaches a terminal status
// (completed, failed, cancelled) no mutator changes it again. A provider
// racing past a cancellation therefore cannot resurrect the task.
//
// Records never leave the registry; Get hands out copies. Tasks are kept for
// the process lifetime; records do not survive a restart.
type Registry struct {
	mu     sync.RWMutex
	tasks  map[uuid.UUID]*domain.Task
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates an empty task registry.
// If logger is nil, the default logger is used.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tasks:  make(map[uuid.UUID]*domain.Task),
		logger: logger.With(slog.String("component", "task_registry")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create allocates a new pending task for the given request and registers
// it. It has no side effects beyond registration.
func (r *Registry) Create(req domain.GenerateRequest) domain.Task {
	t := &domain.Task{
		ID:        uuid.New(),
		Status:    domain.TaskStatusPending,
		Progress:  0,
		Request:   req,
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	r.logger.Info("task created", slog.String("task_id", t.ID.String()))
	return *t
}

// MarkProcessing transitions a pending task to processing and sets the
// initial progress hint. It is a no-op for unknown or terminal tasks.
func (r *Registry) MarkProcessing(id uuid.UUID, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status != domain.TaskStatusPending {
		return
	}
	t.Status = domain.TaskStatusProcessing
	t.Progress = clampProgress(t.Progress, progress)
}

// SetProviderJobID records the upstream correlation id for a task.
// It is a no-op once the task is terminal.
func (r *Registry) SetProviderJobID(id uuid.UUID, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.IsTerminal() {
		return
	}
	t.ProviderJobID = jobID
}

// UpdateProgress raises the progress of a processing task. Progress is
// monotonic non-decreasing; updates on non-processing tasks are rejected
// as no-ops.
func (r *Registry) UpdateProgress(id uuid.UUID, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status != domain.TaskStatusProcessing {
		return
	}
	t.Progress = clampProgress(t.Progress, progress)
}

// Complete transitions a task to completed, records the result reference
// and sets the completion timestamp exactly once. Rejected (no-op) if the
// task is unknown or already terminal.
func (r *Registry) Complete(id uuid.UUID, result *domain.GenerationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.IsTerminal() {
		return
	}
	now := r.now()
	t.Status = domain.TaskStatusCompleted
	t.Progress = 100
	t.Result = result
	t.CompletedAt = &now

	r.logger.Info("task completed",
		slog.String("task_id", id.String()),
		slog.Duration("elapsed", now.Sub(t.CreatedAt)))
}

// Fail transitions a task to failed with the given error message and sets
// the completion timestamp. Rejected (no-op) if the task is unknown or
// already terminal.
func (r *Registry) Fail(id uuid.UUID, errorMessage string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.IsTerminal() {
		return
	}
	now := r.now()
	t.Status = domain.TaskStatusFailed
	t.Error = errorMessage
	t.CompletedAt = &now

	r.logger.Warn("task failed",
		slog.String("task_id", id.String()),
		slog.String("error", errorMessage))
}

// Cancel transitions a pending or processing task to cancelled. It returns
// false when the task is unknown or already terminal, so the second of two
// cancel calls always reports false. Cancellation is cooperative: it does
// not interrupt an in-flight provider call; providers observe the cancelled
// state at their own checkpoints via IsActive.
func (r *Registry) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.IsTerminal() {
		return false
	}
	now := r.now()
	t.Status = domain.TaskStatusCancelled
	t.CompletedAt = &now

	r.logger.Info("task cancelled", slog.String("task_id", id.String()))
	return true
}

// Get returns a copy of the task, or ErrTaskNotFound. The copy shares no
// mutable state with the registry's record.
func (r *Registry) Get(id uuid.UUID) (domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return domain.Task{}, ErrTaskNotFound
	}
	return snapshot(t), nil
}

// IsActive reports whether the task exists and is not yet terminal.
// Providers use it as a cancellation checkpoint between suspension points.
func (r *Registry) IsActive(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	return ok && !t.Status.IsTerminal()
}

// ActiveCount returns the number of non-terminal tasks.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, t := range r.tasks {
		if !t.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// snapshot copies a task record, including the nested result and timestamp,
// so callers never hold a mutable handle into the registry.
func snapshot(t *domain.Task) domain.Task {
	cp := *t
	if t.Result != nil {
		res := *t.Result
		cp.Result = &res
	}
	if t.CompletedAt != nil {
		done := *t.CompletedAt
		cp.CompletedAt = &done
	}
	return cp
}

// clampProgress enforces monotonic, bounded progress.
func clampProgress(current, next int) int {
	if next < current {
		return current
	}
	if next > 100 {
		return 100
	}
	return next
}
