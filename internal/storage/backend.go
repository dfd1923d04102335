package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidPath = errors.New("invalid object path")
)

// Backend abstracts where export artifacts are written. Implemented by local
// FS and S3. Paths are slash separated and relative to the backend root.
type Backend interface {
	// Read returns a reader for the object at the given path, or ErrNotFound.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write stores data at the given path, replacing any previous object.
	Write(ctx context.Context, path string, data []byte, contentType string) error

	// Delete removes the object at the given path. Missing objects are not an
	// error.
	Delete(ctx context.Context, path string) error

	// List returns all paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
