package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/formaworks/forma-api/internal/api/shared"
	"github.com/formaworks/forma-api/internal/provider/sketchfab"
)

// SearchHandler serves read-only queries against the external model index.
type SearchHandler struct {
	client *sketchfab.Client
	logger *slog.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(client *sketchfab.Client, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandler{
		client: client,
		logger: logger.With(slog.String("component", "search_handler")),
	}
}

// Search handles GET /api/search/models.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	query := params.Get("q")
	if query == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	sq := sketchfab.SearchQuery{
		Query:        query,
		Category:     params.Get("category"),
		License:      params.Get("license"),
		SortBy:       params.Get("sort_by"),
		Downloadable: params.Get("downloadable") == "true",
		StaffPicked:  params.Get("staffpicked") == "true",
		Page:         queryInt(params.Get("page")),
		PerPage:      queryInt(params.Get("per_page")),
		MinFaceCount: queryInt(params.Get("min_face_count")),
		MaxFaceCount: queryInt(params.Get("max_face_count")),
	}
	if v := params.Get("animated"); v != "" {
		animated := v == "true"
		sq.Animated = &animated
	}
	if v := params.Get("rigged"); v != "" {
		rigged := v == "true"
		sq.Rigged = &rigged
	}

	page, err := h.client.Search(r.Context(), sq)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway, "Model search is temporarily unavailable", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, page)
}

// ModelDetails handles GET /api/search/models/{uid}.
func (h *SearchHandler) ModelDetails(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Model uid is required")
		return
	}

	model, err := h.client.ModelDetails(r.Context(), uid)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway, "Model lookup is temporarily unavailable", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, model)
}

// Download handles GET /api/search/models/{uid}/download. It resolves a
// signed archive link for a downloadable model.
func (h *SearchHandler) Download(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Model uid is required")
		return
	}

	model, err := h.client.ModelDetails(r.Context(), uid)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway, "Model lookup is temporarily unavailable", err)
		return
	}

	link, err := h.client.ResolveDownload(r.Context(), model)
	switch {
	case errors.Is(err, sketchfab.ErrNotDownloadable):
		shared.RespondWithError(w, r, http.StatusForbidden, "Model is not downloadable")
		return
	case errors.Is(err, sketchfab.ErrNoDownloadLink):
		shared.RespondWithError(w, r, http.StatusNotFound, "No download available in a supported format")
		return
	case err != nil:
		shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway, "Download resolution is temporarily unavailable", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, link)
}

// Popular handles GET /api/search/popular.
func (h *SearchHandler) Popular(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	models, err := h.client.Popular(r.Context(), params.Get("category"), queryInt(params.Get("limit")))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway, "Model search is temporarily unavailable", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, PopularModelsResponse{
		Count:  len(models),
		Models: models,
	})
}

// Categories handles GET /api/search/categories.
func (h *SearchHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.client.Categories(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway, "Category listing is temporarily unavailable", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CategoryListResponse{
		Count:      len(categories),
		Categories: categories,
	})
}

// queryInt parses an optional integer query parameter, treating absent or
// malformed values as zero so the client applies its defaults.
func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
