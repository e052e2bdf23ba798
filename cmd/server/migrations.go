package main

import (
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/formaworks/forma-api/internal/config"
)

// migrationsDir is the goose migration source, relative to the working
// directory the server runs from.
const migrationsDir = "migrations"

// slogGooseLogger adapts goose's logger interface onto slog.
type slogGooseLogger struct{}

func (*slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...))
}

func (*slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...))
}

// runMigrations executes a goose command (up, down, status) against the
// configured database and returns.
func runMigrations(cfg *config.Config, command string, logger *slog.Logger) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("migrations require a database URL")
	}

	db, err := setupDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("Error closing database after migrations", "error", closeErr)
		}
	}()

	goose.SetLogger(&slogGooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	logger.Info("Running migrations", "command", command, "dir", migrationsDir)

	switch command {
	case "up":
		err = goose.Up(db, migrationsDir)
	case "down":
		err = goose.Down(db, migrationsDir)
	case "status":
		err = goose.Status(db, migrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	return nil
}
