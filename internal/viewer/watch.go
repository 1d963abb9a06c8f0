package viewer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ramonehamilton/card-catalog/internal/logger"
)

// DefaultWatchDebounce is how long the watcher waits for writes to settle
// before reloading.
const DefaultWatchDebounce = 500 * time.Millisecond

// Reloader is implemented by Session.
type Reloader interface {
	Reload(ctx context.Context) error
}

// CatalogWatcher reloads a session whenever the catalog file is rewritten.
type CatalogWatcher struct {
	path     string
	debounce time.Duration
	target   Reloader
	log      *logger.Logger
}

// NewCatalogWatcher creates a watcher for the catalog at path. A
// non-positive debounce uses DefaultWatchDebounce.
func NewCatalogWatcher(path string, debounce time.Duration, target Reloader, log *logger.Logger) *CatalogWatcher {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CatalogWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		target:   target,
		log:      log,
	}
}

// Run watches until ctx is cancelled. The catalog's directory is watched
// rather than the file, because the builder replaces the file by rename.
func (w *CatalogWatcher) Run(ctx context.Context) (err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}
	w.log.Info().Str("path", w.path).Msg("watching catalog for changes")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("file watcher error")

		case <-timer.C:
			if err := w.target.Reload(ctx); err != nil {
				w.log.Warn().Err(err).Msg("catalog reload after change failed")
			}
		}
	}
}
