package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/api/shared"
	"github.com/formaworks/forma-api/internal/domain"
	"github.com/formaworks/forma-api/internal/service"
)

// GenerationHandler serves the generation endpoints: submission, status
// polling, artifact download, and cancellation.
type GenerationHandler struct {
	service *service.GenerationService
	logger  *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(svc *service.GenerationService, logger *slog.Logger) *GenerationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationHandler{
		service: svc,
		logger:  logger.With(slog.String("component", "generation_handler")),
	}
}

// Generate handles POST /api/generate.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	// The authenticated caller's identity wins over whatever the body says.
	if userID := shared.GetUserID(r.Context()); userID != "" {
		req.UserID = userID
	}

	outcome, err := h.service.SubmitGeneration(r.Context(), req)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := GenerateResponse{
		TaskID: outcome.TaskID,
		Status: outcome.Status,
		Cached: outcome.Cached,
	}
	if outcome.Cached {
		resp.Message = "Result served from cache"
		resp.Result = outcome.CachedResult
		shared.RespondWithJSON(w, r, http.StatusOK, resp)
		return
	}

	resp.Message = outcome.Status.Message()
	if t, err := h.service.GetStatus(outcome.TaskID); err == nil {
		resp.EstimatedCompletion = t.EstimatedCompletion()
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, resp)
}

// Status handles GET /api/generate/status/{taskID}.
func (h *GenerationHandler) Status(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDFromURL(w, r)
	if !ok {
		return
	}

	t, err := h.service.GetStatus(taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newTaskStatusResponse(t))
}

// Download handles GET /api/generate/download/{taskID}. It streams the
// stored artifact bytes with the format's content type.
func (h *GenerationHandler) Download(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDFromURL(w, r)
	if !ok {
		return
	}

	artifact, err := h.service.GetArtifact(r.Context(), taskID)
	if err != nil {
		status := MapErrorToStatusCode(err)
		if status >= http.StatusInternalServerError {
			shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
			return
		}
		shared.RespondWithError(w, r, status, GetSafeErrorMessage(err))
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write artifact response",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
	}
}

// Cancel handles DELETE /api/generate/{taskID}.
func (h *GenerationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDFromURL(w, r)
	if !ok {
		return
	}

	cancelled, err := h.service.Cancel(taskID)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	resp := CancelResponse{TaskID: taskID, Cancelled: cancelled}
	if cancelled {
		resp.Message = "Task cancelled"
	} else {
		resp.Message = "Task already finished"
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Health handles GET /health.
func (h *GenerationHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health(r.Context())
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:      "ok",
		ActiveTasks: health.ActiveTasks,
		Cache:       health.Cache,
	})
}

// taskIDFromURL parses the {taskID} path parameter, responding with 400 on
// malformed input.
func (h *GenerationHandler) taskIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "taskID")
	taskID, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID format")
		return uuid.Nil, false
	}
	return taskID, true
}
