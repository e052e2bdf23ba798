package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/domain"
)

// EvaluationStore defines the interface for evaluation persistence.
type EvaluationStore interface {
	// Create saves a new evaluation record. It validates the record first
	// and returns ErrInvalidEntity wrapping the validation failure.
	Create(ctx context.Context, evaluation *domain.Evaluation) error

	// ListByTask retrieves all evaluations for a task, newest first.
	// Returns an empty slice when the task has none.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Evaluation, error)
}
