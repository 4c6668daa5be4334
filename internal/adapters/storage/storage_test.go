package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageReadWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.Write(ctx, "migrations/20240101000000.init.sql", []byte("CREATE TABLE t (id int);")))

	got, err := s.Read(ctx, "migrations/20240101000000.init.sql")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE t (id int);", string(got))

	require.NoError(t, s.Write(ctx, "migrations/20240101000000.init.sql", []byte("-- replaced")))
	got, err = s.Read(ctx, "migrations/20240101000000.init.sql")
	require.NoError(t, err)
	assert.Equal(t, "-- replaced", string(got))

	files, err := s.List(ctx, "migrations")
	require.NoError(t, err)
	require.Len(t, files, 1, "temporary files must not survive a write")
}

func TestStorageReadMissing(t *testing.T) {
	_, err := NewMemoryStorage().Read(context.Background(), "nope.sql")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorageDeleteAndExists(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.Write(ctx, "a.sql", []byte("x")))

	ok, err := s.Exists(ctx, "a.sql")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "a.sql"))
	require.NoError(t, s.Delete(ctx, "a.sql"), "deleting twice is fine")

	ok, err = s.Exists(ctx, "a.sql")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorageListSortsAndReportsDirectories(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.Write(ctx, "m/b.sql", []byte("b")))
	require.NoError(t, s.Write(ctx, "m/a.sql", []byte("a")))
	require.NoError(t, s.MkdirAll(ctx, "m/nested"))

	files, err := s.List(ctx, "m")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.sql", files[0].Name)
	assert.Equal(t, "b.sql", files[1].Name)
	assert.True(t, files[2].IsDir)

	missing, err := s.List(ctx, "absent")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestStorageIsRootedAtBasePath(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s, err := NewStorage(&Config{Type: "filesystem", BasePath: "/project"}, fs)
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "../escape.sql", []byte("x")))

	ok, err := afero.Exists(fs, "/project/escape.sql")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/project", s.Root())
}

func TestStorageRelativeBasePath(t *testing.T) {
	ctx := context.Background()
	s := NewFsStorage(afero.NewMemMapFs(), ".")

	require.NoError(t, s.MkdirAll(ctx, "migrations"))
	require.NoError(t, s.Write(ctx, "migrations/1.a.sql", []byte("x")))
	files, err := s.List(ctx, "migrations")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, filepath.IsAbs(s.Root()))
}

func TestNewStorageRejectsUnknownType(t *testing.T) {
	_, err := NewStorage(&Config{Type: "s3"}, nil)
	assert.Error(t, err)
}
