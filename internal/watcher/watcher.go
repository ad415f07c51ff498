package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// ReloadFunc is called once per burst of changes to the watched file.
type ReloadFunc func(ctx context.Context) error

// Watcher triggers a reload when one file changes. The parent directory is
// watched so editors that replace the file by rename are still noticed.
type Watcher struct {
	path     string
	debounce time.Duration
	reload   ReloadFunc
	logger   *slog.Logger
}

func New(path string, debounce time.Duration, reload ReloadFunc, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watched path: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		reload:   reload,
		logger:   logger,
	}, nil
}

// Run watches until ctx is cancelled. Reload errors are logged; the watch
// keeps going.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("watching endpoints file",
		slog.String("path", w.path),
		slog.Duration("debounce", w.debounce))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("endpoints file watcher stopped", slog.String("path", w.path))
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return fmt.Errorf("file watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug("endpoints file changed",
				slog.String("path", event.Name),
				slog.String("op", event.Op.String()))

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.reload(ctx); err != nil {
				w.logger.Error("endpoints reload after file change failed",
					slog.String("path", w.path),
					slog.Any("err", err))
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return fmt.Errorf("file watcher errors channel closed")
			}
			w.logger.Error("file watcher error", slog.Any("err", err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
