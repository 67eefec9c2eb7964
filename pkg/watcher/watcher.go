package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/formgraph/formgraph/pkg/logging"
)

// ChangeEvent represents a detected change to the watched schema document.
type ChangeEvent struct {
	Path      string
	Timestamp time.Time
}

// FileWatcher watches a schema document on disk for changes.
//
// It watches the containing directory rather than the file itself because
// most editors save via rename, which removes the original inode and would
// silently end a file-level watch.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	events  chan ChangeEvent
}

// NewFileWatcher creates a watcher for the schema document at path.
func NewFileWatcher(path string) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher: watcher,
		path:    abs,
		events:  make(chan ChangeEvent, 100),
	}

	return fw, nil
}

// Start begins watching for changes to the schema document.
func (fw *FileWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(fw.path)
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	logging.Info("started watching schema document", "path", fw.path)

	go fw.processEvents(ctx)

	return nil
}

// processEvents filters raw fsnotify events down to the watched file and
// coalesces bursts (editors often emit several events per save).
func (fw *FileWatcher) processEvents(ctx context.Context) {
	pending := false

	flushTimer := time.NewTimer(100 * time.Millisecond)
	flushTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			fw.watcher.Close()
			close(fw.events)
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			pending = true
			flushTimer.Reset(100 * time.Millisecond)

		case <-flushTimer.C:
			if pending {
				pending = false
				fw.events <- ChangeEvent{Path: fw.path, Timestamp: time.Now()}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop stops the file watcher.
func (fw *FileWatcher) Stop() error {
	return fw.watcher.Close()
}
