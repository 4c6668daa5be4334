// Package storage provides storage adapter interfaces for migration files.
package storage

import (
	"context"
)

// Storage defines the storage adapter interface. Paths are relative to the storage root.
type Storage interface {
	// Read reads contents from a path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write atomically replaces the contents of a path.
	Write(ctx context.Context, path string, content []byte) error

	// Delete deletes a file at path. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error

	// Exists checks if a path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List lists the entries of a directory sorted by name. A missing directory is empty.
	List(ctx context.Context, dir string) ([]FileInfo, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(ctx context.Context, path string) error

	// Root describes where paths resolve, for messages.
	Root() string
}

// FileInfo represents file metadata.
type FileInfo struct {
	Name    string
	Size    int64
	IsDir   bool
	ModTime int64
}

// Config holds storage configuration.
type Config struct {
	// Type is the storage type (filesystem, memory).
	Type string

	// BasePath is the base path for filesystem storage.
	BasePath string
}
