// Package storage defines the Backend interface for project file content
// and picks a backend from configuration.
package storage

import (
	"context"
	"io"
	"io/fs"
	"strings"
)

// ErrNotFound is wrapped by every backend when a key does not exist.
var ErrNotFound = fs.ErrNotExist

// Backend is the interface for content storage backends.
// Implementations handle raw object I/O (S3, MinIO, local filesystem).
// Path records are handled separately by postgres.Store.
type Backend interface {
	// GetObject retrieves a whole object and its size.
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// PutObject uploads content to the given key.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// DeleteObject removes an object by key. Missing keys are not an error.
	DeleteObject(ctx context.Context, key string) error

	// ObjectExists checks if an object exists at the given key.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// List returns every key under prefix, relative to prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Type returns the backend type identifier ("s3", "minio", "local").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// ObjectKey returns the key a project file is stored under.
func ObjectKey(projectID, path string) string {
	return projectID + "/" + strings.TrimLeft(path, "/")
}

// ProjectPrefix returns the key prefix shared by all files of a project.
func ProjectPrefix(projectID string) string {
	return strings.TrimSuffix(projectID, "/") + "/"
}
