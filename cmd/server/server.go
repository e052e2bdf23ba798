package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// shutdownTimeout bounds how long draining may take before the process
// exits anyway.
const shutdownTimeout = 15 * time.Second

// serveWithGracefulShutdown runs the HTTP server until the context is
// cancelled or a termination signal arrives, then shuts it down cleanly.
func serveWithGracefulShutdown(ctx context.Context, server *http.Server, app *application) error {
	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	go func() {
		app.logger.Info("Starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Error("Server failed", "error", err)
			cancelServer()
		}
	}()

	select {
	case sig := <-shutdownCh:
		app.logger.Info("Shutting down server", "signal", sig.String())
	case <-serverCtx.Done():
		app.logger.Info("Server context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
