package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/monctl/monctl/pkg/engine"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc receives the freshly loaded resources after a change.
type ReloadFunc func(ctx context.Context, resources []engine.Resource) error

// Watcher reloads resource definitions when their files change.
type Watcher struct {
	paths    []string
	debounce time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	files map[string]bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the settle delay between the last event and the reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatchLogger sets the logger used for watch events.
func WithWatchLogger(logger zerolog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher over the given resource files and directories.
func NewWatcher(paths []string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		paths:    paths,
		debounce: DefaultDebounce,
		logger:   zerolog.Nop(),
		files:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch blocks until ctx is done, calling reload after each settled batch of
// changes. Load failures are logged and do not stop the watch; reload errors
// other than context cancellation are logged too.
func (w *Watcher) Watch(ctx context.Context, reload ReloadFunc) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	for _, path := range w.paths {
		if err := w.add(fsw, path); err != nil {
			return err
		}
	}

	w.logger.Info().Strs("paths", w.paths).Msg("Watching resource definitions")

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				w.watchCreated(fsw, event.Name)
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Resource file changed")

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			w.reload(ctx, reload)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) reload(ctx context.Context, reload ReloadFunc) {
	resources, err := LoadResources(w.paths...)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to reload resources")
		return
	}

	w.logger.Info().Int("resources", len(resources)).Msg("Resources reloaded")
	if err := reload(ctx, resources); err != nil && ctx.Err() == nil {
		w.logger.Error().Err(err).Msg("Reload callback failed")
	}
}

// watchCreated extends the watch to a directory created under a watched tree.
func (w *Watcher) watchCreated(fsw *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.add(fsw, path); err != nil {
		w.logger.Warn().Err(err).Str("dir", path).Msg("Failed to watch new directory")
	}
}

// add watches a directory tree, or the parent directory of a single file so
// that editors replacing the file by rename are still seen.
func (w *Watcher) add(fsw *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.IsDir() {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		w.mu.Lock()
		w.files[abs] = true
		w.mu.Unlock()
		return fsw.Add(filepath.Dir(abs))
	}

	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(p)
		}
		return nil
	})
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	if abs, err := filepath.Abs(event.Name); err == nil {
		w.mu.Lock()
		explicit := w.files[abs]
		w.mu.Unlock()
		if explicit {
			return true
		}
	}

	if !IsResourceFile(event.Name) {
		// New subdirectories matter even though they have no extension.
		return event.Op&fsnotify.Create != 0 && isDir(event.Name)
	}
	return !w.onlyExplicitFiles(event.Name)
}

// onlyExplicitFiles reports whether name sits in a directory watched only
// because an explicit file lives there.
func (w *Watcher) onlyExplicitFiles(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	dir := filepath.Dir(abs)
	for _, p := range w.paths {
		pa, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if isDir(pa) && (dir == pa || isWithin(dir, pa)) {
			return false
		}
	}
	return true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
