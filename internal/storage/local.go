package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/domain"
)

// LocalBackend stores artifacts on the local filesystem under a base
// directory. References are the logical object keys relative to that base,
// so they stay portable across backends.
type LocalBackend struct {
	baseDir string
	logger  *slog.Logger
	now     func() time.Time
}

// NewLocalBackend creates the base directory if needed and returns a
// filesystem-backed storage backend.
func NewLocalBackend(baseDir string, logger *slog.Logger) (*LocalBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", baseDir, err)
	}
	return &LocalBackend{
		baseDir: baseDir,
		logger:  logger.With(slog.String("component", "local_storage")),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

var _ Backend = (*LocalBackend)(nil)

// Save implements Backend.Save.
func (b *LocalBackend) Save(ctx context.Context, taskID uuid.UUID, data []byte, kind domain.ArtifactKind, format string) (string, error) {
	key := objectKey(taskID, kind, format, b.now())
	fullPath := filepath.Join(b.baseDir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}

	b.logger.Info("artifact saved",
		slog.String("key", key),
		slog.Int("size", len(data)))
	return key, nil
}

// Read implements Backend.Read.
func (b *LocalBackend) Read(ctx context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(b.baseDir, filepath.FromSlash(ref)))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return data, nil
}

// Delete implements Backend.Delete.
func (b *LocalBackend) Delete(ctx context.Context, ref string) (bool, error) {
	err := os.Remove(filepath.Join(b.baseDir, filepath.FromSlash(ref)))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", ref, err)
	}

	b.logger.Info("artifact deleted", slog.String("key", ref))
	return true, nil
}
