package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a generation task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Message returns the human-readable description shown to status pollers.
func (s TaskStatus) Message() string {
	switch s {
	case TaskStatusPending:
		return "Task submitted, waiting to be processed"
	case TaskStatusProcessing:
		return "Generating 3D model"
	case TaskStatusCompleted:
		return "Model generation completed"
	case TaskStatusFailed:
		return "Model generation failed"
	case TaskStatusCancelled:
		return "Task was cancelled"
	default:
		return "Unknown status"
	}
}

// ArtifactKind distinguishes the artifact classes a task can produce.
// It namespaces storage keys so one task can own several artifacts.
type ArtifactKind string

// Artifact kinds.
const (
	ArtifactModel   ArtifactKind = "models"
	ArtifactPreview ArtifactKind = "previews"
)

// Attribution carries provenance for artifacts retrieved from a third-party
// content index, so downstream consumers can satisfy license requirements.
type Attribution struct {
	Source              string `json:"source"`
	SourceID            string `json:"source_id"`
	Name                string `json:"name,omitempty"`
	Author              string `json:"author,omitempty"`
	AuthorURL           string `json:"author_url,omitempty"`
	License             string `json:"license,omitempty"`
	AttributionRequired bool   `json:"attribution_required"`
	CommercialUse       bool   `json:"commercial_use"`
}

// GenerationResult is the payload a provider produces for a completed task.
// It is also the value memoized by the cache layer.
type GenerationResult struct {
	TaskID uuid.UUID `json:"task_id"`

	// ModelRef is the storage reference of the persisted artifact. Empty
	// when the result is a degraded, non-downloadable reference.
	ModelRef string `json:"model_ref,omitempty"`

	// PreviewRef points at a preview image or, for degraded results, a
	// viewer/embed URL that stands in for a downloadable artifact.
	PreviewRef string `json:"preview_ref,omitempty"`

	// SourceURL is the upstream URL the artifact bytes were fetched from.
	SourceURL string `json:"source_url,omitempty"`

	FileFormat   string       `json:"file_format,omitempty"`
	FileSize     int64        `json:"file_size,omitempty"`
	Downloadable bool         `json:"downloadable"`
	Provider     string       `json:"provider"`
	Attribution  *Attribution `json:"attribution,omitempty"`
}

// Task represents one generation request's lifecycle. Records are owned
// exclusively by the task registry; everything else works with copies.
type Task struct {
	ID            uuid.UUID         `json:"id"`
	Status        TaskStatus        `json:"status"`
	Progress      int               `json:"progress"`
	Request       GenerateRequest   `json:"request"`
	ProviderJobID string            `json:"provider_job_id,omitempty"`
	Result        *GenerationResult `json:"result,omitempty"`
	Error         string            `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// averageGenerationTime is the fixed estimate used for completion forecasts
// until enough history exists to do better.
const averageGenerationTime = 5 * time.Minute

// EstimatedCompletion returns the forecast completion time for a
// non-terminal task, or nil once the task is terminal.
func (t *Task) EstimatedCompletion() *time.Time {
	if t.Status.IsTerminal() {
		return nil
	}
	eta := t.CreatedAt.Add(averageGenerationTime)
	return &eta
}
