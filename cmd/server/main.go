// Package main implements the entry point for the Forma API server, which
// orchestrates 3D model generation tasks across pluggable providers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/formaworks/forma-api/internal/config"
	"github.com/formaworks/forma-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, status) and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"default_provider", cfg.Provider.Default,
		"storage_kind", cfg.Storage.Kind,
		"feedback_enabled", cfg.Database.URL != "")

	if *migrateCmd != "" {
		if err := runMigrations(cfg, *migrateCmd, appLogger); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		return
	}

	if err := run(context.Background(), cfg, appLogger); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// run wires the application together and blocks until shutdown.
func run(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) error {
	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	return app.startHTTPServer(ctx, app.setupRouter())
}
