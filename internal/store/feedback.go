package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/domain"
)

// FeedbackSummary aggregates the feedback recorded for one task.
type FeedbackSummary struct {
	TaskID        uuid.UUID `json:"task_id"`
	Count         int       `json:"count"`
	AverageRating float64   `json:"average_rating"`
}

// FeedbackStore defines the interface for feedback persistence.
type FeedbackStore interface {
	// Create saves a new feedback record. It validates the record first
	// and returns ErrInvalidEntity wrapping the validation failure.
	Create(ctx context.Context, feedback *domain.Feedback) error

	// GetByID retrieves one feedback record by its unique ID.
	// Returns ErrFeedbackNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Feedback, error)

	// ListByTask retrieves all feedback for a task, newest first.
	// Returns an empty slice when the task has no feedback.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Feedback, error)

	// Summary aggregates the count and mean rating of a task's feedback.
	// A task with no feedback yields a zero-count summary, not an error.
	Summary(ctx context.Context, taskID uuid.UUID) (*FeedbackSummary, error)
}
