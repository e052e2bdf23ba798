// Package service provides the application-level orchestration: it ties the
// task registry, result cache, provider selection, and artifact storage
// together behind the operations the API layer exposes.
package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// Callers check for them with errors.Is(); the API layer maps them to HTTP
// status codes.
var (
	// ErrArtifactNotReady indicates a download was requested for a task
	// that has not completed. API layer should map this to HTTP 404 Not
	// Found: an artifact that does not exist yet is indistinguishable from
	// one that never will.
	ErrArtifactNotReady = errors.New("artifact not available")

	// ErrArtifactNotStored indicates the task completed without a stored
	// artifact (a degraded, view-only result). API layer should map this
	// to HTTP 404 Not Found.
	ErrArtifactNotStored = errors.New("task completed without a stored artifact")

	// ErrFeedbackDisabled indicates no database is configured, so feedback
	// cannot be recorded. API layer should map this to HTTP 503 Service
	// Unavailable.
	ErrFeedbackDisabled = errors.New("feedback storage is not configured")
)
