package service

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"sync"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/cache"
	"github.com/formaworks/forma-api/internal/domain"
	"github.com/formaworks/forma-api/internal/platform/logger"
	"github.com/formaworks/forma-api/internal/provider"
	"github.com/formaworks/forma-api/internal/storage"
	"github.com/formaworks/forma-api/internal/task"
)

// SubmitOutcome is the response to a generation submission. Exactly one of
// the two shapes is populated: a fresh task (TaskID, Status) or a memoized
// result (Cached true, CachedResult set).
type SubmitOutcome struct {
	TaskID       uuid.UUID
	Status       domain.TaskStatus
	Cached       bool
	CachedResult *domain.GenerationResult
}

// GenerationService orchestrates the generation lifecycle: request
// validation, result memoization, provider dispatch, and task finalization.
type GenerationService struct {
	registry *task.Registry
	cache    *cache.Cache
	selector *provider.Selector
	store    storage.Backend
	logger   *slog.Logger

	// wg tracks in-flight provider goroutines so shutdown can wait for
	// them to finish.
	wg sync.WaitGroup
}

// NewGenerationService creates a GenerationService.
func NewGenerationService(
	registry *task.Registry,
	resultCache *cache.Cache,
	selector *provider.Selector,
	store storage.Backend,
	log *slog.Logger,
) *GenerationService {
	if log == nil {
		log = slog.Default()
	}
	return &GenerationService{
		registry: registry,
		cache:    resultCache,
		selector: selector,
		store:    store,
		logger:   log.With(slog.String("component", "generation_service")),
	}
}

// SubmitGeneration validates the request, consults the result cache, and
// either short-circuits with a memoized result or creates a task and
// dispatches the resolved provider in the background. Provider resolution
// happens before task creation: an unknown provider never leaves a
// half-created task behind.
func (s *GenerationService) SubmitGeneration(ctx context.Context, req domain.GenerateRequest) (*SubmitOutcome, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := cache.Fingerprint(req)
	if result, ok := s.cache.Get(ctx, key); ok {
		log.Info("cache hit, skipping generation",
			slog.String("source_task_id", result.TaskID.String()))
		return &SubmitOutcome{
			TaskID:       result.TaskID,
			Status:       domain.TaskStatusCompleted,
			Cached:       true,
			CachedResult: result,
		}, nil
	}

	prov, err := s.selector.Resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	created := s.registry.Create(req)
	log.Info("generation task created",
		slog.String("task_id", created.ID.String()),
		slog.String("provider", prov.Name()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// The task outlives the submitting request; its lifetime is
		// bounded by the provider's own budget, not the HTTP context.
		s.run(context.Background(), prov, created.ID, req, key)
	}()

	return &SubmitOutcome{TaskID: created.ID, Status: created.Status}, nil
}

// run drives one provider invocation to a terminal task state. Provider
// faults become Registry.Fail; they are never propagated.
func (s *GenerationService) run(ctx context.Context, prov provider.Provider, taskID uuid.UUID, req domain.GenerateRequest, cacheKey string) {
	result, err := prov.Produce(ctx, taskID, req)
	switch {
	case err == nil:
		s.registry.Complete(taskID, result)
		s.cache.Set(ctx, cacheKey, result, 0)
	case errors.Is(err, provider.ErrTaskCancelled):
		// The registry already holds the cancelled state; the provider
		// just stopped working on it.
		s.logger.Info("provider abandoned cancelled task",
			slog.String("task_id", taskID.String()))
	default:
		s.logger.Error("generation failed",
			slog.String("task_id", taskID.String()),
			slog.String("provider", prov.Name()),
			slog.String("error", err.Error()))
		s.registry.Fail(taskID, err.Error())
	}
}

// GetStatus returns a snapshot of the task. Returns task.ErrTaskNotFound
// for unknown ids.
func (s *GenerationService) GetStatus(taskID uuid.UUID) (domain.Task, error) {
	return s.registry.Get(taskID)
}

// Cancel requests cooperative cancellation. It reports whether the task
// transitioned to cancelled; terminal tasks (and repeat cancels) report
// false.
func (s *GenerationService) Cancel(taskID uuid.UUID) (bool, error) {
	if _, err := s.registry.Get(taskID); err != nil {
		return false, err
	}
	return s.registry.Cancel(taskID), nil
}

// Artifact is a downloadable payload with its serving metadata.
type Artifact struct {
	Data        []byte
	ContentType string
	Ref         string
}

// Filename returns the base name of the artifact's storage reference,
// suitable for a Content-Disposition header.
func (a *Artifact) Filename() string {
	return path.Base(a.Ref)
}

// GetArtifact returns the stored artifact of a completed task. Unknown
// tasks and tasks that have not completed both come back as not-found;
// completed-but-degraded results come back as ErrArtifactNotStored.
func (s *GenerationService) GetArtifact(ctx context.Context, taskID uuid.UUID) (*Artifact, error) {
	t, err := s.registry.Get(taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskStatusCompleted || t.Result == nil {
		return nil, ErrArtifactNotReady
	}
	if t.Result.ModelRef == "" {
		return nil, ErrArtifactNotStored
	}

	data, err := s.store.Read(ctx, t.Result.ModelRef)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Data:        data,
		ContentType: storage.ContentTypeFor(t.Result.ModelRef),
		Ref:         t.Result.ModelRef,
	}, nil
}

// Health reports the orchestration's runtime shape for the health endpoint.
type Health struct {
	ActiveTasks int         `json:"active_tasks"`
	Cache       cache.Stats `json:"cache"`
}

// Health returns current diagnostics.
func (s *GenerationService) Health(ctx context.Context) Health {
	return Health{
		ActiveTasks: s.registry.ActiveCount(),
		Cache:       s.cache.Stats(ctx),
	}
}

// Wait blocks until all in-flight provider goroutines have finished. Used
// during graceful shutdown.
func (s *GenerationService) Wait() {
	s.wg.Wait()
}
