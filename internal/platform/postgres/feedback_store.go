package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/domain"
	"github.com/formaworks/forma-api/internal/platform/logger"
	"github.com/formaworks/forma-api/internal/store"
)

// FeedbackStore implements the store.FeedbackStore interface using a
// PostgreSQL database as the storage backend.
type FeedbackStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewFeedbackStore creates a new PostgreSQL implementation of the
// FeedbackStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller. If logger is nil,
// a default logger will be used.
func NewFeedbackStore(db store.DBTX, logger *slog.Logger) *FeedbackStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackStore{
		db:     db,
		logger: logger.With(slog.String("component", "feedback_store")),
	}
}

// Ensure FeedbackStore implements store.FeedbackStore interface
var _ store.FeedbackStore = (*FeedbackStore)(nil)

// Create implements store.FeedbackStore.Create. It validates the record
// and persists it; validation failures come back wrapped in
// store.ErrInvalidEntity.
func (s *FeedbackStore) Create(ctx context.Context, feedback *domain.Feedback) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := feedback.Validate(); err != nil {
		log.Warn("feedback validation failed during create",
			slog.String("error", err.Error()),
			slog.String("feedback_id", feedback.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	issues, err := json.Marshal(feedback.Issues)
	if err != nil {
		return fmt.Errorf("failed to encode issues: %w", err)
	}

	query := `
		INSERT INTO feedback (
			id, task_id, user_id, rating, comment, feedback_type,
			quality_rating, accuracy_rating, speed_rating,
			issues, suggestions, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		feedback.ID,
		feedback.TaskID,
		feedback.UserID,
		feedback.Rating,
		feedback.Comment,
		feedback.FeedbackType,
		feedback.QualityRating,
		feedback.AccuracyRating,
		feedback.SpeedRating,
		issues,
		feedback.Suggestions,
		feedback.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create feedback",
			slog.String("error", err.Error()),
			slog.String("feedback_id", feedback.ID.String()),
			slog.String("task_id", feedback.TaskID.String()))
		return MapError(err)
	}

	log.Info("feedback created",
		slog.String("feedback_id", feedback.ID.String()),
		slog.String("task_id", feedback.TaskID.String()),
		slog.Int("rating", feedback.Rating))
	return nil
}

// GetByID implements store.FeedbackStore.GetByID.
// Returns store.ErrFeedbackNotFound if the record does not exist.
func (s *FeedbackStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Feedback, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, user_id, rating, comment, feedback_type,
		       quality_rating, accuracy_rating, speed_rating,
		       issues, suggestions, created_at
		FROM feedback
		WHERE id = $1
	`
	feedback, err := scanFeedback(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			log.Debug("feedback not found", slog.String("feedback_id", id.String()))
			return nil, store.ErrFeedbackNotFound
		}
		log.Error("failed to get feedback by ID",
			slog.String("error", err.Error()),
			slog.String("feedback_id", id.String()))
		return nil, MapError(err)
	}
	return feedback, nil
}

// ListByTask implements store.FeedbackStore.ListByTask, newest first.
func (s *FeedbackStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Feedback, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, user_id, rating, comment, feedback_type,
		       quality_rating, accuracy_rating, speed_rating,
		       issues, suggestions, created_at
		FROM feedback
		WHERE task_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list feedback",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	feedbacks := []*domain.Feedback{}
	for rows.Next() {
		feedback, err := scanFeedback(rows)
		if err != nil {
			return nil, MapError(err)
		}
		feedbacks = append(feedbacks, feedback)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return feedbacks, nil
}

// Summary implements store.FeedbackStore.Summary. A task with no feedback
// yields a zero-count summary.
func (s *FeedbackStore) Summary(ctx context.Context, taskID uuid.UUID) (*store.FeedbackSummary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT COUNT(*), COALESCE(AVG(rating), 0)
		FROM feedback
		WHERE task_id = $1
	`
	summary := &store.FeedbackSummary{TaskID: taskID}
	err := s.db.QueryRowContext(ctx, query, taskID).Scan(&summary.Count, &summary.AverageRating)
	if err != nil {
		log.Error("failed to summarize feedback",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	return summary, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row rowScanner) (*domain.Feedback, error) {
	var feedback domain.Feedback
	var issues []byte

	err := row.Scan(
		&feedback.ID,
		&feedback.TaskID,
		&feedback.UserID,
		&feedback.Rating,
		&feedback.Comment,
		&feedback.FeedbackType,
		&feedback.QualityRating,
		&feedback.AccuracyRating,
		&feedback.SpeedRating,
		&issues,
		&feedback.Suggestions,
		&feedback.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(issues) > 0 {
		if err := json.Unmarshal(issues, &feedback.Issues); err != nil {
			return nil, fmt.Errorf("failed to decode issues: %w", err)
		}
	}
	return &feedback, nil
}
