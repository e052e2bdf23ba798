package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Feedback
var (
	ErrEmptyFeedbackTaskID = errors.New("feedback task ID cannot be empty")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrCommentTooLong      = errors.New("comment exceeds maximum length")
)

const maxCommentLength = 1000

// Feedback represents one user's rating of a completed generation task.
type Feedback struct {
	ID             uuid.UUID `json:"id"`
	TaskID         uuid.UUID `json:"task_id"`
	UserID         string    `json:"user_id,omitempty"`
	Rating         int       `json:"rating"`
	Comment        string    `json:"comment,omitempty"`
	FeedbackType   string    `json:"feedback_type"`
	QualityRating  *int      `json:"quality_rating,omitempty"`
	AccuracyRating *int      `json:"accuracy_rating,omitempty"`
	SpeedRating    *int      `json:"speed_rating,omitempty"`
	Issues         []string  `json:"issues,omitempty"`
	Suggestions    string    `json:"suggestions,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewFeedback creates a Feedback with a fresh ID and creation timestamp.
// Returns an error if validation fails.
func NewFeedback(taskID uuid.UUID, userID string, rating int, comment string) (*Feedback, error) {
	fb := &Feedback{
		ID:           uuid.New(),
		TaskID:       taskID,
		UserID:       userID,
		Rating:       rating,
		Comment:      comment,
		FeedbackType: "general",
		CreatedAt:    time.Now().UTC(),
	}

	if err := fb.Validate(); err != nil {
		return nil, err
	}

	return fb, nil
}

// Validate checks if the Feedback has valid data.
func (f *Feedback) Validate() error {
	if f.TaskID == uuid.Nil {
		return ErrEmptyFeedbackTaskID
	}
	if f.Rating < 1 || f.Rating > 5 {
		return ErrInvalidRating
	}
	if len(f.Comment) > maxCommentLength {
		return ErrCommentTooLong
	}
	for _, r := range []*int{f.QualityRating, f.AccuracyRating, f.SpeedRating} {
		if r != nil && (*r < 1 || *r > 5) {
			return ErrInvalidRating
		}
	}
	return nil
}
