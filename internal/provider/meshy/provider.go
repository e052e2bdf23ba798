package meshy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/domain"
	"github.com/formaworks/forma-api/internal/provider"
	"github.com/formaworks/forma-api/internal/storage"
)

// ProviderName is the identifier the remote-poll provider registers under.
const ProviderName = "meshy"

// Progress milestones reported during the remote generation lifecycle, so a
// polling client always observes monotonic progress.
const (
	progressSubmitted   = 10
	progressAccepted    = 30
	progressDownloading = 80
)

// generationAPI is the slice of the remote API the provider depends on.
// *Client satisfies it; tests substitute scripted fakes.
type generationAPI interface {
	SubmitJob(ctx context.Context, prompt, artStyle, negativePrompt, imageURL string, seed *int64) (string, error)
	JobStatus(ctx context.Context, jobID string) (*JobState, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Config bounds the polling loop.
type Config struct {
	// PollInterval is the fixed delay between status polls.
	PollInterval time.Duration

	// MaxDuration is the wall-clock budget from submission to terminal
	// upstream state. Exceeding it fails the attempt the same way an
	// upstream failure does.
	MaxDuration time.Duration
}

// DefaultConfig returns the polling bounds used in production: a 5 second
// interval under a 5 minute budget.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		MaxDuration:  5 * time.Minute,
	}
}

// Provider generates models through the remote polling API and persists
// the downloaded artifact.
type Provider struct {
	api     generationAPI
	store   storage.Backend
	tracker provider.Tracker
	config  Config
	logger  *slog.Logger

	// now and sleep are injected so tests can simulate elapsed time
	// without real delay.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates the remote-poll provider.
func New(client *Client, store storage.Backend, tracker provider.Tracker, config Config, logger *slog.Logger) *Provider {
	return newWithAPI(client, store, tracker, config, logger)
}

func newWithAPI(api generationAPI, store storage.Backend, tracker provider.Tracker, config Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.MaxDuration <= 0 {
		config.MaxDuration = DefaultConfig().MaxDuration
	}
	return &Provider{
		api:     api,
		store:   store,
		tracker: tracker,
		config:  config,
		logger:  logger.With(slog.String("component", "meshy_provider")),
		now:     func() time.Time { return time.Now().UTC() },
		sleep:   sleepCtx,
	}
}

var _ provider.Provider = (*Provider)(nil)

// Name implements provider.Provider.
func (p *Provider) Name() string { return ProviderName }

// Produce implements provider.Provider. It submits the request upstream,
// polls until the job reaches a terminal state or the wall-clock budget is
// spent, then downloads and persists the artifact. Cancellation is observed
// at each checkpoint between suspension points.
func (p *Provider) Produce(ctx context.Context, taskID uuid.UUID, req domain.GenerateRequest) (*domain.GenerationResult, error) {
	p.tracker.MarkProcessing(taskID, progressSubmitted)

	jobID, err := p.api.SubmitJob(ctx, req.Prompt, string(req.Style), req.NegativePrompt, req.ImageURL, req.Seed)
	if err != nil {
		return nil, err
	}
	p.tracker.SetProviderJobID(taskID, jobID)
	p.tracker.UpdateProgress(taskID, progressAccepted)

	p.logger.Info("generation job submitted",
		slog.String("task_id", taskID.String()),
		slog.String("job_id", jobID))

	if !p.tracker.IsActive(taskID) {
		return nil, provider.ErrTaskCancelled
	}

	modelURL, format, err := p.pollUntilDone(ctx, taskID, jobID)
	if err != nil {
		return nil, err
	}

	p.tracker.UpdateProgress(taskID, progressDownloading)
	if !p.tracker.IsActive(taskID) {
		return nil, provider.ErrTaskCancelled
	}

	data, err := p.api.Download(ctx, modelURL)
	if err != nil {
		return nil, err
	}

	ref, err := p.store.Save(ctx, taskID, data, domain.ArtifactModel, format)
	if err != nil {
		return nil, fmt.Errorf("failed to persist model: %w", err)
	}

	return &domain.GenerationResult{
		TaskID:       taskID,
		ModelRef:     ref,
		SourceURL:    modelURL,
		FileFormat:   format,
		FileSize:     int64(len(data)),
		Downloadable: true,
		Provider:     ProviderName,
	}, nil
}

// pollUntilDone polls the status endpoint at the configured interval until
// the job succeeds, fails, or the wall-clock budget runs out. A timeout is
// surfaced as a plain failure, indistinguishable in kind from an upstream
// failure.
func (p *Provider) pollUntilDone(ctx context.Context, taskID uuid.UUID, jobID string) (modelURL, format string, err error) {
	deadline := p.now().Add(p.config.MaxDuration)

	for {
		if !p.now().Before(deadline) {
			return "", "", fmt.Errorf("generation job %s timed out after %s", jobID, p.config.MaxDuration)
		}
		if err := p.sleep(ctx, p.config.PollInterval); err != nil {
			return "", "", err
		}
		if !p.tracker.IsActive(taskID) {
			return "", "", provider.ErrTaskCancelled
		}

		state, err := p.api.JobStatus(ctx, jobID)
		if err != nil {
			// A transiently unavailable status endpoint is a skipped
			// poll; anything else is a hard failure.
			if errors.Is(err, ErrStatusUnavailable) {
				p.logger.Debug("status poll skipped",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()))
				continue
			}
			return "", "", err
		}

		switch state.Status {
		case JobStatusSucceeded:
			url, format := state.ModelURL()
			if url == "" {
				return "", "", fmt.Errorf("generation job %s succeeded without a model URL", jobID)
			}
			return url, format, nil
		case JobStatusFailed, JobStatusExpired:
			msg := "generation job failed"
			if state.TaskError != nil && state.TaskError.Message != "" {
				msg = fmt.Sprintf("generation job failed: %s", state.TaskError.Message)
			}
			return "", "", errors.New(msg)
		}
	}
}

// sleepCtx sleeps for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
