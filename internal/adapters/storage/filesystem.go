package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// ErrNotFound is returned when reading a path that does not exist.
var ErrNotFound = errors.New("file not found")

// FilesystemStorage implements Storage on an afero filesystem rooted at a base path.
type FilesystemStorage struct {
	fs       afero.Fs
	basePath string
}

// NewFilesystemStorage creates a storage adapter for basePath on the host filesystem.
func NewFilesystemStorage(basePath string) *FilesystemStorage {
	return NewFsStorage(afero.NewOsFs(), basePath)
}

// NewMemoryStorage creates a storage adapter backed by memory.
func NewMemoryStorage() *FilesystemStorage {
	return NewFsStorage(afero.NewMemMapFs(), "")
}

// NewFsStorage creates a storage adapter rooted at basePath on fs. A relative basePath is
// resolved against the working directory.
func NewFsStorage(fs afero.Fs, basePath string) *FilesystemStorage {
	if basePath != "" {
		if abs, err := filepath.Abs(basePath); err == nil {
			basePath = abs
		}
		fs = afero.NewBasePathFs(fs, basePath)
	}
	return &FilesystemStorage{fs: fs, basePath: basePath}
}

// Root returns the base path.
func (s *FilesystemStorage) Root() string {
	if s.basePath == "" {
		return "(memory)"
	}
	return s.basePath
}

func (s *FilesystemStorage) resolvePath(path string) string {
	return filepath.Clean(string(filepath.Separator) + path)
}

// Read reads contents from a path.
func (s *FilesystemStorage) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := afero.ReadFile(s.fs, s.resolvePath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// Write writes to a temporary sibling and renames it over path.
func (s *FilesystemStorage) Write(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := s.resolvePath(path)
	if err := s.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(full), "."+filepath.Base(full)+".tmp")
	if err := afero.WriteFile(s.fs, tmp, content, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := s.fs.Rename(tmp, full); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Delete deletes a file at path.
func (s *FilesystemStorage) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Remove(s.resolvePath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists checks if a path exists.
func (s *FilesystemStorage) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := afero.Exists(s.fs, s.resolvePath(path))
	if err != nil {
		return false, fmt.Errorf("failed to check file: %w", err)
	}
	return ok, nil
}

// List lists the entries of a directory.
func (s *FilesystemStorage) List(ctx context.Context, dir string) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(s.fs, s.resolvePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}
	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		files = append(files, FileInfo{
			Name:    entry.Name(),
			Size:    entry.Size(),
			IsDir:   entry.IsDir(),
			ModTime: entry.ModTime().Unix(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// MkdirAll creates a directory and all parent directories.
func (s *FilesystemStorage) MkdirAll(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.resolvePath(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// Ensure FilesystemStorage implements Storage interface.
var _ Storage = (*FilesystemStorage)(nil)
