package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/api/shared"
	"github.com/formaworks/forma-api/internal/service"
)

// FeedbackHandler serves the feedback endpoints. All of them return 503
// when the deployment runs without a database.
type FeedbackHandler struct {
	service *service.FeedbackService
	logger  *slog.Logger
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(svc *service.FeedbackService, logger *slog.Logger) *FeedbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackHandler{
		service: svc,
		logger:  logger.With(slog.String("component", "feedback_handler")),
	}
}

// Submit handles POST /api/feedback.
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid feedback: "+err.Error())
		return
	}

	fb, err := h.service.Submit(r.Context(), service.FeedbackInput{
		TaskID:         req.TaskID,
		UserID:         shared.GetUserID(r.Context()),
		Rating:         req.Rating,
		Comment:        req.Comment,
		FeedbackType:   req.FeedbackType,
		QualityRating:  req.QualityRating,
		AccuracyRating: req.AccuracyRating,
		SpeedRating:    req.SpeedRating,
		Issues:         req.Issues,
		Suggestions:    req.Suggestions,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, FeedbackResponse{
		ID:        fb.ID,
		TaskID:    fb.TaskID,
		Rating:    fb.Rating,
		CreatedAt: fb.CreatedAt,
	})
}

// GetByID handles GET /api/feedback/id/{id}.
func (h *FeedbackHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid feedback ID format")
		return
	}

	fb, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, fb)
}

// Evaluate handles POST /api/evaluate. It scores the submitted quality
// metrics and stores the resulting evaluation.
func (h *FeedbackHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid evaluation: "+err.Error())
		return
	}

	evaluation, err := h.service.Evaluate(r.Context(), req.TaskID, req.Metrics)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, EvaluateResponse{
		EvaluationID: evaluation.ID,
		TaskID:       evaluation.TaskID,
		Score:        evaluation.Score,
		CreatedAt:    evaluation.CreatedAt,
	})
}

// ListEvaluations handles GET /api/evaluate/{taskID}.
func (h *FeedbackHandler) ListEvaluations(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID format")
		return
	}

	evaluations, err := h.service.ListEvaluations(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, EvaluationListResponse{
		TaskID:      taskID,
		Count:       len(evaluations),
		Evaluations: evaluations,
	})
}

// ListByTask handles GET /api/feedback/{taskID}. The response carries the
// aggregate alongside the individual entries so pollers need one call.
func (h *FeedbackHandler) ListByTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID format")
		return
	}

	entries, err := h.service.ListByTask(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	summary, err := h.service.Summary(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, FeedbackListResponse{
		TaskID:        taskID,
		Count:         summary.Count,
		AverageRating: summary.AverageRating,
		Feedback:      entries,
	})
}
