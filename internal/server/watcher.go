package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches a notebook file and reports its new content when it
// changes. The parent directory is watched so that editors which save by
// renaming a temporary file over the original are noticed too.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(path string, content []byte) error
	log      *zap.Logger
	done     chan struct{}
}

// NewWatcher creates a watcher for the given file.
func NewWatcher(path string, onChange func(string, []byte) error, log *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		watcher:  fsWatcher,
		path:     abs,
		onChange: onChange,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handle(event)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Error("watch error", zap.Error(err))

			case <-w.done:
				return
			}
		}
	}()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	if name, err := filepath.Abs(event.Name); err != nil || name != w.path {
		return
	}

	content, err := os.ReadFile(w.path)
	if err != nil {
		// Mid-rename; the Create that follows carries the new file
		w.log.Debug("notebook not readable", zap.Error(err))
		return
	}

	w.log.Debug("file changed", zap.String("path", w.path), zap.Stringer("op", event.Op))
	if err := w.onChange(w.path, content); err != nil {
		w.log.Warn("reload failed", zap.String("path", w.path), zap.Error(err))
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}
