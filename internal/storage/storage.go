// Package storage persists opaque artifact blobs under logical
// (task, kind, format) keys behind interchangeable physical backends.
// Callers never branch on the backend kind.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/domain"
)

// ErrObjectNotFound is returned by Read when no object exists at the given
// reference. Absence is a distinct condition from an I/O failure.
var ErrObjectNotFound = errors.New("storage object not found")

// Backend is the capability every physical storage variant implements.
//
// Save followed immediately by Read of the returned reference yields
// byte-identical content. Delete is idempotent: deleting an absent object
// returns false rather than an error.
type Backend interface {
	// Save persists data and returns the backend-assigned reference.
	Save(ctx context.Context, taskID uuid.UUID, data []byte, kind domain.ArtifactKind, format string) (string, error)

	// Read returns the bytes stored at ref, or ErrObjectNotFound.
	Read(ctx context.Context, ref string) ([]byte, error)

	// Delete removes the object at ref. Returns false when nothing was
	// there to delete.
	Delete(ctx context.Context, ref string) (bool, error)
}

// objectKey builds the logical key shared by every backend variant:
// <kind>/<YYYY/MM/DD>/<taskID>.<format>. The date segment bounds the size
// of any single directory or key prefix.
func objectKey(taskID uuid.UUID, kind domain.ArtifactKind, format string, now time.Time) string {
	name := fmt.Sprintf("%s.%s", taskID, strings.ToLower(format))
	if kind == domain.ArtifactPreview {
		name = fmt.Sprintf("%s_preview.%s", taskID, strings.ToLower(format))
	}
	return path.Join(string(kind), now.Format("2006/01/02"), name)
}

// contentTypes maps artifact extensions to MIME types for backends that
// record one (object stores).
var contentTypes = map[string]string{
	".obj":  "application/octet-stream",
	".glb":  "model/gltf-binary",
	".gltf": "model/gltf+json",
	".ply":  "application/octet-stream",
	".stl":  "application/octet-stream",
	".fbx":  "application/octet-stream",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ContentTypeFor returns the MIME type for a stored object's key.
func ContentTypeFor(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
