package localgen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/domain"
	"github.com/formaworks/forma-api/internal/provider"
	"github.com/formaworks/forma-api/internal/storage"
)

// ProviderName is the identifier the local synthesizer registers under.
const ProviderName = "localgen"

// Provider fabricates a placeholder artifact synchronously and persists it.
type Provider struct {
	store   storage.Backend
	tracker provider.Tracker
	logger  *slog.Logger
}

// New creates the local-synthesis provider.
func New(store storage.Backend, tracker provider.Tracker, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:   store,
		tracker: tracker,
		logger:  logger.With(slog.String("component", "localgen_provider")),
	}
}

var _ provider.Provider = (*Provider)(nil)

// Name implements provider.Provider.
func (p *Provider) Name() string { return ProviderName }

// Produce implements provider.Provider. There are no external calls and no
// suspension points beyond the storage write, so the only cancellation
// checkpoint is up front.
func (p *Provider) Produce(ctx context.Context, taskID uuid.UUID, req domain.GenerateRequest) (*domain.GenerationResult, error) {
	p.tracker.MarkProcessing(taskID, 10)
	if !p.tracker.IsActive(taskID) {
		return nil, provider.ErrTaskCancelled
	}

	data, format := encodeMesh(req.OutputFormat)
	p.tracker.UpdateProgress(taskID, 80)

	ref, err := p.store.Save(ctx, taskID, data, domain.ArtifactModel, format)
	if err != nil {
		return nil, fmt.Errorf("failed to persist placeholder model: %w", err)
	}

	p.logger.Info("placeholder model synthesized",
		slog.String("task_id", taskID.String()),
		slog.String("format", format))

	return &domain.GenerationResult{
		TaskID:       taskID,
		ModelRef:     ref,
		FileFormat:   format,
		FileSize:     int64(len(data)),
		Downloadable: true,
		Provider:     ProviderName,
	}, nil
}
