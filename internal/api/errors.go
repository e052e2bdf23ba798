package api

import (
	"errors"
	"net/http"

	"github.com/formaworks/forma-api/internal/domain"
	"github.com/formaworks/forma-api/internal/provider"
	"github.com/formaworks/forma-api/internal/service"
	"github.com/formaworks/forma-api/internal/service/auth"
	"github.com/formaworks/forma-api/internal/storage"
	"github.com/formaworks/forma-api/internal/store"
	"github.com/formaworks/forma-api/internal/task"
)

// MapErrorToStatusCode translates domain and service errors into HTTP status
// codes. Unrecognized errors map to 500.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, storage.ErrObjectNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, service.ErrArtifactNotReady),
		errors.Is(err, service.ErrArtifactNotStored):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrEmptyPrompt),
		errors.Is(err, domain.ErrPromptTooLong),
		errors.Is(err, domain.ErrInvalidStyle),
		errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrMissingImageURL),
		errors.Is(err, domain.ErrInvalidResolution),
		errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrInvalidQuality),
		errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrEmptyFeedbackTaskID),
		errors.Is(err, domain.ErrEmptyEvaluationTaskID),
		errors.Is(err, domain.ErrCommentTooLong),
		errors.Is(err, provider.ErrUnknownProvider),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidAPIKey):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrFeedbackDisabled):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a message suitable for the response body.
// Validation errors are relayed verbatim; anything unexpected is replaced
// with a generic message so internals never leak to clients.
func GetSafeErrorMessage(err error) string {
	status := MapErrorToStatusCode(err)
	if status == http.StatusInternalServerError {
		return "An internal error occurred"
	}
	return err.Error()
}
