package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyEvaluationTaskID rejects evaluations submitted without a task.
var ErrEmptyEvaluationTaskID = errors.New("evaluation task ID cannot be empty")

// Metric names recognized by the quality scorer. Unknown metrics are
// stored but do not influence the score.
const (
	MetricGeometryQuality = "geometry_quality"
	MetricTextureQuality  = "texture_quality"
	MetricFileSizeMB      = "file_size"
)

// Evaluation is one automated quality assessment of a generated model.
type Evaluation struct {
	ID     uuid.UUID `json:"id"`
	TaskID uuid.UUID `json:"task_id"`
	Score  float64   `json:"score"`

	GeometryScore *float64 `json:"geometry_score,omitempty"`
	TextureScore  *float64 `json:"texture_score,omitempty"`
	TopologyScore *float64 `json:"topology_score,omitempty"`

	Metrics         map[string]float64 `json:"metrics,omitempty"`
	Issues          []string           `json:"issues,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewEvaluation scores the submitted metrics and wraps them in a record
// with a fresh ID and creation timestamp.
func NewEvaluation(taskID uuid.UUID, metrics map[string]float64) (*Evaluation, error) {
	ev := &Evaluation{
		ID:        uuid.New(),
		TaskID:    taskID,
		Score:     ScoreModelQuality(metrics),
		Metrics:   metrics,
		CreatedAt: time.Now().UTC(),
	}

	if err := ev.Validate(); err != nil {
		return nil, err
	}

	return ev, nil
}

// Validate checks if the Evaluation has valid data.
func (e *Evaluation) Validate() error {
	if e.TaskID == uuid.Nil {
		return ErrEmptyEvaluationTaskID
	}
	return nil
}

// ScoreModelQuality derives a 0-100 quality score from evaluation metrics.
// Every model starts from a neutral base; strong geometry and texture
// signals (above 0.8) each add ten points, and a compact file (under 50 MB)
// adds five.
func ScoreModelQuality(metrics map[string]float64) float64 {
	score := 75.0

	for metric, value := range metrics {
		switch metric {
		case MetricGeometryQuality:
			if value > 0.8 {
				score += 10
			}
		case MetricTextureQuality:
			if value > 0.8 {
				score += 10
			}
		case MetricFileSizeMB:
			if value < 50 {
				score += 5
			}
		}
	}

	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
