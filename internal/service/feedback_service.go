package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/domain"
	"github.com/formaworks/forma-api/internal/platform/logger"
	"github.com/formaworks/forma-api/internal/store"
)

// FeedbackInput carries everything a caller may attach to a rating.
type FeedbackInput struct {
	TaskID         uuid.UUID
	UserID         string
	Rating         int
	Comment        string
	FeedbackType   string
	QualityRating  *int
	AccuracyRating *int
	SpeedRating    *int
	Issues         []string
	Suggestions    string
}

// FeedbackService records and aggregates user feedback and automated
// quality evaluations on completed tasks. It is constructed with nil
// stores when no database is configured, in which case every operation
// returns ErrFeedbackDisabled.
type FeedbackService struct {
	store       store.FeedbackStore
	evaluations store.EvaluationStore
	logger      *slog.Logger
}

// NewFeedbackService creates a FeedbackService. Both stores may be nil.
func NewFeedbackService(feedbackStore store.FeedbackStore, evaluationStore store.EvaluationStore, log *slog.Logger) *FeedbackService {
	if log == nil {
		log = slog.Default()
	}
	return &FeedbackService{
		store:       feedbackStore,
		evaluations: evaluationStore,
		logger:      log.With(slog.String("component", "feedback_service")),
	}
}

// Enabled reports whether feedback persistence is configured.
func (s *FeedbackService) Enabled() bool {
	return s.store != nil
}

// Submit validates and persists one feedback record, returning it with its
// assigned id.
func (s *FeedbackService) Submit(ctx context.Context, input FeedbackInput) (*domain.Feedback, error) {
	if s.store == nil {
		return nil, ErrFeedbackDisabled
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	feedback, err := domain.NewFeedback(input.TaskID, input.UserID, input.Rating, input.Comment)
	if err != nil {
		return nil, err
	}
	if input.FeedbackType != "" {
		feedback.FeedbackType = input.FeedbackType
	}
	feedback.QualityRating = input.QualityRating
	feedback.AccuracyRating = input.AccuracyRating
	feedback.SpeedRating = input.SpeedRating
	feedback.Issues = input.Issues
	feedback.Suggestions = input.Suggestions

	if err := feedback.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, feedback); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}

	log.Info("feedback recorded",
		slog.String("feedback_id", feedback.ID.String()),
		slog.String("task_id", feedback.TaskID.String()))
	return feedback, nil
}

// ListByTask returns all feedback for a task, newest first.
func (s *FeedbackService) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Feedback, error) {
	if s.store == nil {
		return nil, ErrFeedbackDisabled
	}
	return s.store.ListByTask(ctx, taskID)
}

// Summary aggregates a task's feedback.
func (s *FeedbackService) Summary(ctx context.Context, taskID uuid.UUID) (*store.FeedbackSummary, error) {
	if s.store == nil {
		return nil, ErrFeedbackDisabled
	}
	return s.store.Summary(ctx, taskID)
}

// GetByID returns one feedback record.
func (s *FeedbackService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Feedback, error) {
	if s.store == nil {
		return nil, ErrFeedbackDisabled
	}
	return s.store.GetByID(ctx, id)
}

// Evaluate scores the submitted quality metrics and persists the resulting
// evaluation record.
func (s *FeedbackService) Evaluate(ctx context.Context, taskID uuid.UUID, metrics map[string]float64) (*domain.Evaluation, error) {
	if s.evaluations == nil {
		return nil, ErrFeedbackDisabled
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	evaluation, err := domain.NewEvaluation(taskID, metrics)
	if err != nil {
		return nil, err
	}

	if err := s.evaluations.Create(ctx, evaluation); err != nil {
		return nil, fmt.Errorf("failed to save evaluation: %w", err)
	}

	log.Info("model evaluated",
		slog.String("evaluation_id", evaluation.ID.String()),
		slog.String("task_id", evaluation.TaskID.String()),
		slog.Float64("score", evaluation.Score))
	return evaluation, nil
}

// ListEvaluations returns all evaluations for a task, newest first.
func (s *FeedbackService) ListEvaluations(ctx context.Context, taskID uuid.UUID) ([]*domain.Evaluation, error) {
	if s.evaluations == nil {
		return nil, ErrFeedbackDisabled
	}
	return s.evaluations.ListByTask(ctx, taskID)
}
