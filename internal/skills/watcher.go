package skills

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads a Loader's skill set whenever a file under one of its
// configured directories changes, so newly dropped-in skills show up
// without a gateway restart.
type Watcher struct {
	loader *Loader
	fsw    *fsnotify.Watcher
}

// NewWatcher creates a Watcher over loader's directories. Directories that
// don't exist yet are skipped; they won't be picked up until the process
// restarts after being created.
func NewWatcher(loader *Loader) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range loader.Dirs() {
		if err := fsw.Add(dir); err != nil {
			slog.Debug("skills.watcher: skipping directory", "dir", dir, "error", err)
		}
	}
	return &Watcher{loader: loader, fsw: fsw}, nil
}

// Start runs the watch loop until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				slog.Debug("skills.watcher: reload triggered", "file", event.Name, "op", event.Op.String())
				w.loader.Reload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("skills.watcher: error", "error", err)
		}
	}
}

// Stop closes the underlying filesystem watch.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}
