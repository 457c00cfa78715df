package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher logs a restart notice when the config file changes on disk.
// The persona set is fixed for the lifetime of the process, so changes are
// never hot-applied.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for the given config file path.
// Watching the parent directory survives editors that replace the file.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}
	return &Watcher{path: path, watcher: fw, done: make(chan struct{})}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case <-w.done:
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					slog.Warn("config file changed; restart to apply", "path", w.path)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				slog.Debug("config watcher error", "error", err)
			}
		}
	}()
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}
