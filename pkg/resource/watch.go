package resource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dandye/mcp-security/pkg/log"
)

// DefaultDebounce is how long [Watcher] waits for further events before
// invoking its callback.
const DefaultDebounce = 250 * time.Millisecond

// Watcher watches directory trees and invokes a callback after changes.
// Bursts of events are coalesced into a single callback.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func(context.Context)
	dirs     map[string]struct{}
	debounce time.Duration
	mu       sync.Mutex
}

// WatcherOpt configures a [Watcher].
type WatcherOpt func(*Watcher)

// WithDebounce sets the debounce interval.
func WithDebounce(d time.Duration) WatcherOpt {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a new [Watcher] that calls onChange after changes.
func NewWatcher(onChange func(context.Context), opts ...WatcherOpt) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		onChange: onChange,
		dirs:     map[string]struct{}{},
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Add watches every directory below each root. Missing roots are skipped.
func (w *Watcher) Add(ctx context.Context, roots ...string) error {
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			log.WithContext(ctx).DebugContext(ctx, "skip watch of missing directory",
				slog.String("path", root),
			)

			continue
		}

		err = w.addTree(root)
		if err != nil {
			return err
		}
	}

	w.mu.Lock()
	n := len(w.dirs)
	w.mu.Unlock()

	log.WithContext(ctx).DebugContext(ctx, "added file watchers", slog.Int("count", n))

	return nil
}

func (w *Watcher) addTree(root string) error {
	// WalkDir does not descend into a symlinked root.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", root, err)
	}

	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}
		if !d.IsDir() {
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("absolute path %q: %w", path, err)
		}

		w.mu.Lock()
		defer w.mu.Unlock()

		if _, ok := w.dirs[abs]; ok {
			return nil
		}

		err = w.watcher.Add(abs)
		if err != nil {
			return fmt.Errorf("add path to watcher: %w", err)
		}

		w.dirs[abs] = struct{}{}

		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %q: %w", root, err)
	}

	return nil
}

// Dirs returns the number of watched directories.
func (w *Watcher) Dirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.dirs)
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	logger := log.WithContext(ctx)

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
			return

		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Ignore events that are not related to file content changes.
			if evt.Has(fsnotify.Chmod) {
				continue
			}

			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					err := w.addTree(evt.Name)
					if err != nil {
						logger.ErrorContext(ctx, "watch new directory", slog.Any("err", err))
					}
				}
			}

			if evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename) {
				w.forget(evt.Name)
			}

			logger.DebugContext(ctx, "file event", slog.String("event", evt.String()))

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}

			fire = timer.C

		case <-fire:
			fire = nil

			w.onChange(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			logger.ErrorContext(ctx, "watch error", slog.Any("err", err))
		}
	}
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prefix := path + string(filepath.Separator)

	for dir := range w.dirs {
		if dir != path && !strings.HasPrefix(dir, prefix) {
			continue
		}

		err := w.watcher.Remove(dir)
		if err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			slog.Debug("remove path from watcher", slog.String("path", dir), slog.Any("err", err))
		}

		delete(w.dirs, dir)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	if err != nil {
		return fmt.Errorf("close watcher: %w", err)
	}

	return nil
}
