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

// EvaluationStore implements the store.EvaluationStore interface using a
// PostgreSQL database as the storage backend.
type EvaluationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewEvaluationStore creates a new PostgreSQL implementation of the
// EvaluationStore interface. It accepts a database connection or
// transaction that should be initialized and managed by the caller. If
// logger is nil, a default logger will be used.
func NewEvaluationStore(db store.DBTX, logger *slog.Logger) *EvaluationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluationStore{
		db:     db,
		logger: logger.With(slog.String("component", "evaluation_store")),
	}
}

// Ensure EvaluationStore implements store.EvaluationStore interface
var _ store.EvaluationStore = (*EvaluationStore)(nil)

// Create implements store.EvaluationStore.Create. It validates the record
// and persists it; validation failures come back wrapped in
// store.ErrInvalidEntity.
func (s *EvaluationStore) Create(ctx context.Context, evaluation *domain.Evaluation) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := evaluation.Validate(); err != nil {
		log.Warn("evaluation validation failed during create",
			slog.String("error", err.Error()),
			slog.String("evaluation_id", evaluation.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	metrics, err := json.Marshal(evaluation.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	issues, err := json.Marshal(evaluation.Issues)
	if err != nil {
		return fmt.Errorf("failed to encode issues: %w", err)
	}
	recommendations, err := json.Marshal(evaluation.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to encode recommendations: %w", err)
	}

	query := `
		INSERT INTO evaluations (
			id, task_id, score,
			geometry_score, texture_score, topology_score,
			metrics, issues, recommendations, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		evaluation.ID,
		evaluation.TaskID,
		evaluation.Score,
		evaluation.GeometryScore,
		evaluation.TextureScore,
		evaluation.TopologyScore,
		metrics,
		issues,
		recommendations,
		evaluation.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create evaluation",
			slog.String("error", err.Error()),
			slog.String("evaluation_id", evaluation.ID.String()),
			slog.String("task_id", evaluation.TaskID.String()))
		return MapError(err)
	}

	log.Info("evaluation created",
		slog.String("evaluation_id", evaluation.ID.String()),
		slog.String("task_id", evaluation.TaskID.String()),
		slog.Float64("score", evaluation.Score))
	return nil
}

// ListByTask implements store.EvaluationStore.ListByTask, newest first.
func (s *EvaluationStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Evaluation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, score,
		       geometry_score, texture_score, topology_score,
		       metrics, issues, recommendations, created_at
		FROM evaluations
		WHERE task_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list evaluations",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	evaluations := []*domain.Evaluation{}
	for rows.Next() {
		evaluation, err := scanEvaluation(rows)
		if err != nil {
			return nil, MapError(err)
		}
		evaluations = append(evaluations, evaluation)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return evaluations, nil
}

// scanEvaluation maps one row onto a domain.Evaluation.
func scanEvaluation(row rowScanner) (*domain.Evaluation, error) {
	var (
		evaluation      domain.Evaluation
		metrics         []byte
		issues          []byte
		recommendations []byte
	)
	err := row.Scan(
		&evaluation.ID,
		&evaluation.TaskID,
		&evaluation.Score,
		&evaluation.GeometryScore,
		&evaluation.TextureScore,
		&evaluation.TopologyScore,
		&metrics,
		&issues,
		&recommendations,
		&evaluation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &evaluation.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics: %w", err)
		}
	}
	if len(issues) > 0 {
		if err := json.Unmarshal(issues, &evaluation.Issues); err != nil {
			return nil, fmt.Errorf("failed to decode issues: %w", err)
		}
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &evaluation.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to decode recommendations: %w", err)
		}
	}
	return &evaluation, nil
}
