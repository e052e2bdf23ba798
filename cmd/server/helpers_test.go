package main

import (
	"io"
	"log/slog"
)

// discardLogger returns a logger that drops everything, keeping test
// output readable.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
