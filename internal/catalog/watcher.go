package catalog

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/victor/stormcatalog/internal/models"
)

const defaultDebounce = 2 * time.Second

// Watcher triggers catalog runs when image files change below the roots.
// It works on the real filesystem.
type Watcher struct {
	service  *Service
	debounce time.Duration
	logger   *slog.Logger
	onRun    func(*Result, error)
}

// NewWatcher creates a watcher. onRun, when set, receives every run outcome.
func NewWatcher(service *Service, debounce time.Duration, onRun func(*Result, error)) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{service: service, debounce: debounce, logger: service.logger, onRun: onRun}
}

// Watch blocks until ctx is cancelled, running the catalog after each burst
// of relevant events. Runs skipped by the cooldown are retried once it ends.
func (w *Watcher) Watch(ctx context.Context, cb Callback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	for _, root := range w.service.opts.Roots {
		if err := w.addDirsRecursive(fw, root); err != nil {
			return err
		}
	}
	w.logger.Info("watcher: started", slog.Int("roots", len(w.service.opts.Roots)))

	var timer *time.Timer
	var timerC <-chan time.Time
	schedule := func(d time.Duration) {
		if timer == nil {
			timer = time.NewTimer(d)
			timerC = timer.C
			return
		}
		timer.Reset(d)
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case <-timerC:
			result, runErr := w.service.Run(ctx, cb)
			if w.onRun != nil {
				w.onRun(result, runErr)
			}
			if runErr != nil && ctx.Err() == nil {
				w.logger.Error("watcher: catalog run failed", slog.String("error", runErr.Error()))
			}
			if result != nil && result.Skipped {
				schedule(w.service.CooldownRemaining() + w.debounce)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.relevant(fw, ev) {
				schedule(w.debounce)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant reports whether ev may change the catalog, watching new directories on the way
func (w *Watcher) relevant(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	if w.service.opts.SkipHidden && models.IsHidden(name) {
		return false
	}
	if w.service.exempted(ev.Name) {
		return false
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addDirsRecursive(fw, ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			return true
		}
	}
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && !models.IsImageFile(name) {
		// may be a directory
		return true
	}
	return models.IsImageFile(name) && ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ((w.service.opts.SkipHidden && models.IsHidden(d.Name())) || w.service.exempted(path)) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
