// Package watch turns file system notifications under the content root
// into debounced batches of changed content files.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dih-project/wishonia/internal/corpus"
	"github.com/dih-project/wishonia/internal/storage"
)

const defaultDebounce = 500 * time.Millisecond

// Batch is one debounced set of changes, as root-relative slash paths.
type Batch struct {
	Changed []string
	Removed []string
}

// Handler processes a batch. It runs on the watcher goroutine, so events
// that arrive meanwhile are queued into the next batch.
type Handler func(ctx context.Context, b Batch)

// Watcher watches Root recursively, skipping ignored directories.
type Watcher struct {
	Root     string
	Ignore   *corpus.IgnoreRules
	Debounce time.Duration
	Logger   *slog.Logger
}

// Run blocks until ctx is cancelled. New directories created at runtime are
// added to the watch list and the content files already in them reported.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addDirs(fw, w.Root, nil); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", w.Root))

	changed := map[string]struct{}{}
	removed := map[string]struct{}{}
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			b := Batch{Changed: keys(changed), Removed: keys(removed)}
			changed = map[string]struct{}{}
			removed = map[string]struct{}{}
			if len(b.Changed)+len(b.Removed) > 0 {
				logger.Debug("watcher: batch", slog.Int("changed", len(b.Changed)), slog.Int("removed", len(b.Removed)))
				handle(ctx, b)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			rel, ok := w.rel(ev.Name)
			if !ok {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if w.Ignore != nil && w.Ignore.Ignored(rel, true) {
						continue
					}
					var found []string
					if addErr := w.addDirs(fw, ev.Name, &found); addErr != nil {
						logger.Warn("watcher: add new dir failed", slog.String("path", rel), slog.String("error", addErr.Error()))
					}
					for _, p := range found {
						changed[p] = struct{}{}
					}
					if len(found) > 0 {
						schedule()
					}
					continue
				}
			}

			if !storage.IsContentFile(rel) || (w.Ignore != nil && w.Ignore.Ignored(rel, false)) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				changed[rel] = struct{}{}
				delete(removed, rel)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename fires on the old path; the new one arrives as Create.
				if _, err := os.Stat(ev.Name); err == nil {
					changed[rel] = struct{}{}
				} else {
					removed[rel] = struct{}{}
					delete(changed, rel)
				}
			default:
				continue
			}
			schedule()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) rel(abs string) (string, bool) {
	rel, err := filepath.Rel(w.Root, abs)
	if err != nil || rel == "." {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// addDirs watches dir and its subdirectories. When found is non-nil the
// content files encountered are appended to it.
func (w *Watcher) addDirs(fw *fsnotify.Watcher, dir string, found *[]string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, ok := w.rel(p)
		if d.IsDir() {
			if ok && w.Ignore != nil && w.Ignore.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return fw.Add(p)
		}
		if found != nil && ok && storage.IsContentFile(rel) && (w.Ignore == nil || !w.Ignore.Ignored(rel, false)) {
			*found = append(*found, rel)
		}
		return nil
	})
}

func keys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
