package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a config file for changes and re-parses it on write,
// following the teacher's HotReloadSystem: fsnotify watches the containing
// directory (more reliable across editors' atomic-rename saves than
// watching the file itself) and filters events down to the one path we
// care about.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	isWatching bool
}

// NewWatcher constructs a Watcher for the config file at path.
func NewWatcher(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create file watcher: %w", err)
	}
	return &Watcher{path: path, watcher: w}, nil
}

// Watch starts watching and returns a channel of newly loaded Configs (one
// per detected write) and a channel of errors. Both channels close when ctx
// is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context) (<-chan Config, <-chan error) {
	changes := make(chan Config, 10)
	errs := make(chan error, 10)

	w.mu.Lock()
	if w.isWatching {
		w.mu.Unlock()
		close(changes)
		close(errs)
		return changes, errs
	}

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Unlock()
		errs <- fmt.Errorf("config: watch directory %s: %w", dir, err)
		close(changes)
		close(errs)
		return changes, errs
	}
	w.isWatching = true
	w.mu.Unlock()

	go func() {
		defer close(changes)
		defer close(errs)
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Name != w.path || event.Op&fsnotify.Write != fsnotify.Write {
					continue
				}
				cfg, err := Load(w.path)
				if err != nil {
					errs <- err
					continue
				}
				changes <- cfg
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				errs <- err
			case <-ctx.Done():
				return
			}
		}
	}()

	return changes, errs
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isWatching {
		return nil
	}
	w.isWatching = false
	return w.watcher.Close()
}
