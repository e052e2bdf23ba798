package sketchfab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/domain"
	"github.com/formaworks/forma-api/internal/provider"
	"github.com/formaworks/forma-api/internal/storage"
)

// ProviderName is the identifier the search-retrieval provider registers
// under.
const ProviderName = "sketchfab"

// Progress milestones for the retrieval lifecycle.
const (
	progressSearching   = 10
	progressMatched     = 30
	progressDownloading = 80
)

// searchAPI is the slice of the index client the provider depends on.
// *Client satisfies it; tests substitute scripted fakes.
type searchAPI interface {
	Search(ctx context.Context, q SearchQuery) (*SearchPage, error)
	ResolveDownload(ctx context.Context, model *Model) (*DownloadLink, error)
	Fetch(ctx context.Context, downloadURL string) ([]byte, error)
}

// Provider satisfies generation requests by retrieving the best existing
// match from the content index instead of generating a new model. When the
// match cannot be downloaded it still completes the task with a degraded
// viewer reference.
type Provider struct {
	api     searchAPI
	store   storage.Backend
	tracker provider.Tracker
	logger  *slog.Logger
}

// New creates the search-retrieval provider.
func New(client *Client, store storage.Backend, tracker provider.Tracker, logger *slog.Logger) *Provider {
	return newWithAPI(client, store, tracker, logger)
}

func newWithAPI(api searchAPI, store storage.Backend, tracker provider.Tracker, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		api:     api,
		store:   store,
		tracker: tracker,
		logger:  logger.With(slog.String("component", "sketchfab_provider")),
	}
}

var _ provider.Provider = (*Provider)(nil)

// Name implements provider.Provider.
func (p *Provider) Name() string { return ProviderName }

// Produce implements provider.Provider. It searches the index for the
// prompt, takes the top relevance match, and either persists the downloaded
// archive or falls back to a viewer reference when no archive is available.
func (p *Provider) Produce(ctx context.Context, taskID uuid.UUID, req domain.GenerateRequest) (*domain.GenerationResult, error) {
	p.tracker.MarkProcessing(taskID, progressSearching)

	model, err := p.findMatch(ctx, req.Prompt)
	if err != nil {
		return nil, err
	}
	p.tracker.SetProviderJobID(taskID, model.UID)
	p.tracker.UpdateProgress(taskID, progressMatched)

	p.logger.Info("index match found",
		slog.String("task_id", taskID.String()),
		slog.String("model_uid", model.UID),
		slog.Bool("downloadable", model.Downloadable))

	if !p.tracker.IsActive(taskID) {
		return nil, provider.ErrTaskCancelled
	}

	link, err := p.api.ResolveDownload(ctx, model)
	switch {
	case err == nil:
		return p.retrieve(ctx, taskID, model, link)
	case errors.Is(err, ErrNotDownloadable), errors.Is(err, ErrNoDownloadLink):
		// Still a completed task: the caller gets a viewable reference
		// instead of a stored artifact.
		return p.degradedResult(taskID, model), nil
	default:
		return nil, err
	}
}

// findMatch returns the top relevance match, preferring downloadable
// models and widening the search when none exist.
func (p *Provider) findMatch(ctx context.Context, prompt string) (*Model, error) {
	queries := []SearchQuery{
		{Query: prompt, Downloadable: true, SortBy: "relevance", PerPage: 1},
		{Query: prompt, SortBy: "relevance", PerPage: 1},
	}
	for _, q := range queries {
		page, err := p.api.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(page.Models) > 0 {
			return &page.Models[0], nil
		}
	}
	return nil, fmt.Errorf("no model in the content index matches %q", prompt)
}

func (p *Provider) retrieve(ctx context.Context, taskID uuid.UUID, model *Model, link *DownloadLink) (*domain.GenerationResult, error) {
	p.tracker.UpdateProgress(taskID, progressDownloading)
	if !p.tracker.IsActive(taskID) {
		return nil, provider.ErrTaskCancelled
	}

	data, err := p.api.Fetch(ctx, link.URL)
	if err != nil {
		return nil, err
	}

	ref, err := p.store.Save(ctx, taskID, data, domain.ArtifactModel, link.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to persist retrieved model: %w", err)
	}

	return &domain.GenerationResult{
		TaskID:       taskID,
		ModelRef:     ref,
		PreviewRef:   model.ThumbnailURL,
		SourceURL:    link.URL,
		FileFormat:   link.Format,
		FileSize:     int64(len(data)),
		Downloadable: true,
		Provider:     ProviderName,
		Attribution:  attributionFor(model),
	}, nil
}

func (p *Provider) degradedResult(taskID uuid.UUID, model *Model) *domain.GenerationResult {
	p.logger.Info("match has no downloadable archive, returning viewer reference",
		slog.String("task_id", taskID.String()),
		slog.String("model_uid", model.UID))

	return &domain.GenerationResult{
		TaskID:       taskID,
		PreviewRef:   model.PreviewRef(),
		SourceURL:    model.ViewerURL,
		Downloadable: false,
		Provider:     ProviderName,
		Attribution:  attributionFor(model),
	}
}

func attributionFor(model *Model) *domain.Attribution {
	attributionRequired, commercialUse := LicenseFlags(model.License)
	return &domain.Attribution{
		Source:              ProviderName,
		SourceID:            model.UID,
		Name:                model.Name,
		Author:              model.Author,
		AuthorURL:           model.AuthorURL,
		License:             model.License,
		AttributionRequired: attributionRequired,
		CommercialUse:       commercialUse,
	}
}
