// Package watch re-runs a callback when migration files change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/satishbabariya/dbdelta/internal/debug"
)

// DefaultDebounce coalesces bursts of events, such as an editor writing a file in several steps.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a directory for .sql files being created, written or renamed into place.
type Watcher struct {
	dir      string
	debounce time.Duration
	callback func(ctx context.Context) error
	onError  func(error)
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher on dir. Callback errors are passed to onError and do not stop
// the watcher.
func NewWatcher(dir string, callback func(ctx context.Context) error, onError func(error)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := watcher.Add(absPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}
	if onError == nil {
		onError = func(err error) { debug.Error("watch callback failed", "error", err) }
	}

	return &Watcher{
		dir:      absPath,
		debounce: DefaultDebounce,
		callback: callback,
		onError:  onError,
		watcher:  watcher,
	}, nil
}

// SetDebounce changes the quiet period before the callback runs.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

func relevant(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".sql") {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}

// Run calls the callback once, then again after every burst of relevant events, until ctx is
// done. The watcher is closed when Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.callback(ctx); err != nil {
		w.onError(err)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var pending <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if relevant(event) {
				debug.Debug("migration file changed", "file", event.Name, "op", event.Op.String())
				timer.Reset(w.debounce)
				pending = timer.C
			}

		case <-pending:
			pending = nil
			if err := w.callback(ctx); err != nil {
				w.onError(err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.onError(fmt.Errorf("watch error: %w", err))

		case <-ctx.Done():
			return nil
		}
	}
}
