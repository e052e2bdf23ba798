package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/cache"
	"github.com/formaworks/forma-api/internal/domain"
	"github.com/formaworks/forma-api/internal/provider/sketchfab"
)

// GenerateResponse is returned from the generation submission endpoint.
type GenerateResponse struct {
	TaskID              uuid.UUID                `json:"task_id"`
	Status              domain.TaskStatus        `json:"status"`
	Message             string                   `json:"message"`
	EstimatedCompletion *time.Time               `json:"estimated_completion,omitempty"`
	Cached              bool                     `json:"cached"`
	Result              *domain.GenerationResult `json:"result,omitempty"`
}

// TaskStatusResponse is returned from the status polling endpoint.
type TaskStatusResponse struct {
	TaskID              uuid.UUID                `json:"task_id"`
	Status              domain.TaskStatus        `json:"status"`
	Progress            int                      `json:"progress"`
	Message             string                   `json:"message"`
	ProviderJobID       string                   `json:"provider_job_id,omitempty"`
	Error               string                   `json:"error,omitempty"`
	Result              *domain.GenerationResult `json:"result,omitempty"`
	CreatedAt           time.Time                `json:"created_at"`
	CompletedAt         *time.Time               `json:"completed_at,omitempty"`
	EstimatedCompletion *time.Time               `json:"estimated_completion,omitempty"`
}

// newTaskStatusResponse maps a task snapshot onto the polling DTO.
func newTaskStatusResponse(t domain.Task) TaskStatusResponse {
	return TaskStatusResponse{
		TaskID:              t.ID,
		Status:              t.Status,
		Progress:            t.Progress,
		Message:             t.Status.Message(),
		ProviderJobID:       t.ProviderJobID,
		Error:               t.Error,
		Result:              t.Result,
		CreatedAt:           t.CreatedAt,
		CompletedAt:         t.CompletedAt,
		EstimatedCompletion: t.EstimatedCompletion(),
	}
}

// CancelResponse is returned from the task cancellation endpoint.
type CancelResponse struct {
	TaskID    uuid.UUID `json:"task_id"`
	Cancelled bool      `json:"cancelled"`
	Message   string    `json:"message"`
}

// FeedbackRequest is the payload for submitting feedback on a task.
type FeedbackRequest struct {
	TaskID         uuid.UUID `json:"task_id" validate:"required"`
	Rating         int       `json:"rating" validate:"required,min=1,max=5"`
	Comment        string    `json:"comment,omitempty" validate:"omitempty,max=1000"`
	FeedbackType   string    `json:"feedback_type,omitempty" validate:"omitempty,oneof=general quality accuracy speed"`
	QualityRating  *int      `json:"quality_rating,omitempty" validate:"omitempty,min=1,max=5"`
	AccuracyRating *int      `json:"accuracy_rating,omitempty" validate:"omitempty,min=1,max=5"`
	SpeedRating    *int      `json:"speed_rating,omitempty" validate:"omitempty,min=1,max=5"`
	Issues         []string  `json:"issues,omitempty"`
	Suggestions    string    `json:"suggestions,omitempty"`
}

// FeedbackResponse is returned after feedback is recorded.
type FeedbackResponse struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackListResponse is returned from the per-task feedback listing.
type FeedbackListResponse struct {
	TaskID        uuid.UUID          `json:"task_id"`
	Count         int                `json:"count"`
	AverageRating float64            `json:"average_rating"`
	Feedback      []*domain.Feedback `json:"feedback"`
}

// EvaluateRequest is the payload for submitting automated quality metrics
// on a generated model.
type EvaluateRequest struct {
	TaskID  uuid.UUID          `json:"task_id" validate:"required"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// EvaluateResponse is returned after an evaluation is recorded.
type EvaluateResponse struct {
	EvaluationID uuid.UUID `json:"evaluation_id"`
	TaskID       uuid.UUID `json:"task_id"`
	Score        float64   `json:"score"`
	CreatedAt    time.Time `json:"created_at"`
}

// EvaluationListResponse is returned from the per-task evaluation listing.
type EvaluationListResponse struct {
	TaskID      uuid.UUID            `json:"task_id"`
	Count       int                  `json:"count"`
	Evaluations []*domain.Evaluation `json:"evaluations"`
}

// PopularModelsResponse is returned from the popular-models endpoint.
type PopularModelsResponse struct {
	Count  int               `json:"count"`
	Models []sketchfab.Model `json:"models"`
}

// CategoryListResponse is returned from the category listing endpoint.
type CategoryListResponse struct {
	Count      int                  `json:"count"`
	Categories []sketchfab.Category `json:"categories"`
}

// HealthResponse is returned from the health endpoint.
type HealthResponse struct {
	Status      string      `json:"status"`
	ActiveTasks int         `json:"active_tasks"`
	Cache       cache.Stats `json:"cache"`
}
