package content

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/storage"
)

// EventCallback is called after a watcher-driven store change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, slug string)

// Watch starts an fsnotify watcher on the posts root and keeps the store in
// step with the file system until ctx is cancelled. cb (if non-nil) runs
// after each successful store mutation.
//
// Rename and remove events trigger a debounced reconciliation pass that drops
// store entries whose files no longer exist on disk, since editors often
// replace files through rename chains.
func Watch(ctx context.Context, store *Store, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}

			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			slug := storage.SlugFor(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				_, existed := store.Get(slug)
				if err := store.ReloadFile(rel); err != nil {
					logger.Warn("watcher: reload failed",
						slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				kind := "updated"
				if !existed {
					kind = "created"
				}
				logger.Debug("watcher: reloaded", slog.String("slug", slug), slog.String("kind", kind))
				if cb != nil {
					cb(kind, slug)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				scheduleReconcile()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// reconcile removes store entries whose backing files disappeared.
func reconcile(store *Store, logger *slog.Logger, cb EventCallback) {
	for _, p := range store.Posts() {
		path, ok := store.Path(p.Slug)
		if !ok {
			continue
		}
		if _, err := store.provider.Read(path); err != nil {
			store.Remove(p.Slug)
			logger.Debug("watcher: removed stale", slog.String("slug", p.Slug))
			if cb != nil {
				cb("deleted", p.Slug)
			}
		}
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
