package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/formaworks/forma-api/internal/cache"
	"github.com/formaworks/forma-api/internal/config"
	"github.com/formaworks/forma-api/internal/platform/postgres"
	"github.com/formaworks/forma-api/internal/provider"
	"github.com/formaworks/forma-api/internal/provider/localgen"
	"github.com/formaworks/forma-api/internal/provider/meshy"
	"github.com/formaworks/forma-api/internal/provider/sketchfab"
	"github.com/formaworks/forma-api/internal/service"
	"github.com/formaworks/forma-api/internal/service/auth"
	"github.com/formaworks/forma-api/internal/storage"
	"github.com/formaworks/forma-api/internal/task"
)

// application holds the shared application dependencies so wiring and
// cleanup live in one place.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil when no database is configured; feedback endpoints are
	// disabled in that mode.
	db *sql.DB

	registry        *task.Registry
	resultCache     *cache.Cache
	store           storage.Backend
	selector        *provider.Selector
	sketchfabClient *sketchfab.Client

	generationService *service.GenerationService
	feedbackService   *service.FeedbackService

	tokenService   auth.TokenService
	apiKeyVerifier *auth.APIKeyVerifier
}

// newApplication creates an application with all dependencies initialized.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.tokenService, err = auth.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	app.apiKeyVerifier = auth.NewAPIKeyVerifier(cfg.Auth.APIKey)
	logger.Info("Authentication initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMin,
		"api_key_enabled", cfg.Auth.APIKey != "")

	app.store, err = setupStorage(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	app.resultCache, err = setupCache(cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize result cache: %w", err)
	}

	app.registry = task.NewRegistry(logger)
	app.selector = setupProviders(app, cfg.Provider, logger)

	app.generationService = service.NewGenerationService(
		app.registry,
		app.resultCache,
		app.selector,
		app.store,
		logger,
	)

	if cfg.Database.URL != "" {
		app.db, err = setupDatabase(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		feedbackStore := postgres.NewFeedbackStore(app.db, logger)
		evaluationStore := postgres.NewEvaluationStore(app.db, logger)
		app.feedbackService = service.NewFeedbackService(feedbackStore, evaluationStore, logger)
	} else {
		logger.Info("No database configured, feedback endpoints disabled")
		app.feedbackService = service.NewFeedbackService(nil, nil, logger)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupStorage builds the configured artifact storage backend.
func setupStorage(cfg config.StorageConfig, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Kind {
	case "s3":
		return storage.NewS3Backend(storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		}, logger)
	case "local":
		return storage.NewLocalBackend(cfg.LocalDir, logger)
	default:
		return nil, fmt.Errorf("unsupported storage kind %q", cfg.Kind)
	}
}

// setupCache builds the two-tier result cache. A missing Redis URL degrades
// to the local tier alone rather than failing startup.
func setupCache(cfg config.CacheConfig, logger *slog.Logger) (*cache.Cache, error) {
	var shared cache.SharedStore
	if cfg.RedisURL != "" {
		redisStore, err := cache.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis configuration: %w", err)
		}
		shared = redisStore
		logger.Info("Shared cache tier enabled")
	}

	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	return cache.New(shared, ttl, cfg.MaxLocalEntries, logger), nil
}

// setupProviders registers every configured provider with the selector.
func setupProviders(app *application, cfg config.ProviderConfig, logger *slog.Logger) *provider.Selector {
	selector := provider.NewSelector(cfg.Default)

	meshyClient := meshy.NewClient(cfg.Meshy.BaseURL, cfg.Meshy.APIKey, nil)
	selector.Register(meshy.New(meshyClient, app.store, app.registry, meshy.Config{
		PollInterval: time.Duration(cfg.Meshy.PollIntervalSeconds) * time.Second,
		MaxDuration:  time.Duration(cfg.Meshy.MaxDurationSeconds) * time.Second,
	}, logger))

	selector.Register(localgen.New(app.store, app.registry, logger))

	app.sketchfabClient = sketchfab.NewClient(
		cfg.Sketchfab.BaseURL,
		cfg.Sketchfab.APIToken,
		time.Duration(cfg.Sketchfab.MinIntervalMS)*time.Millisecond,
		nil,
	)
	selector.Register(sketchfab.New(app.sketchfabClient, app.store, app.registry, logger))

	return selector
}

// startHTTPServer runs the server until a shutdown signal, then drains
// in-flight requests and provider goroutines.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serveWithGracefulShutdown(ctx, server, app)
}

// cleanup releases resources during shutdown.
func (app *application) cleanup() {
	// Let in-flight generation goroutines reach a terminal state before
	// the process exits.
	app.generationService.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
