package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevant(t *testing.T) {
	assert.True(t, relevant(fsnotify.Event{Name: "/m/20240101000000.init.sql", Op: fsnotify.Create}))
	assert.True(t, relevant(fsnotify.Event{Name: "/m/20240101000000.init.sql", Op: fsnotify.Write}))
	assert.False(t, relevant(fsnotify.Event{Name: "/m/.20240101000000.init.sql.tmp", Op: fsnotify.Create}))
	assert.False(t, relevant(fsnotify.Event{Name: "/m/notes.txt", Op: fsnotify.Write}))
	assert.False(t, relevant(fsnotify.Event{Name: "/m/20240101000000.init.sql", Op: fsnotify.Chmod}))
}

func TestWatcherRunsOnNewMigration(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	triggered := make(chan struct{}, 4)

	w, err := NewWatcher(dir, func(ctx context.Context) error {
		calls.Add(1)
		select {
		case triggered <- struct{}{}:
		default:
		}
		return nil
	}, nil)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-triggered:
	case <-time.After(5 * time.Second):
		t.Fatal("initial run did not happen")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "20240101000000.init.sql"), []byte("SELECT 1;"), 0o644))
	select {
	case <-triggered:
	case <-time.After(5 * time.Second):
		t.Fatal("change was not picked up")
	}

	cancel()
	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestNewWatcherMissingDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), func(context.Context) error { return nil }, nil)
	assert.Error(t, err)
}
