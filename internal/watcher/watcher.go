// Package watcher keeps an index current while files change. It watches the
// workspace tree with fsnotify, debounces bursts of writes to the same file,
// and reports workspace-relative paths to its callbacks.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches a single workspace root. onChange fires after a create or
// write settles; onRemove fires when a file is deleted or renamed away. Both
// receive paths relative to the workspace root with forward slashes.
type Watcher struct {
	workspace  string
	extensions map[string]bool
	ignoreDirs map[string]bool
	onChange   func(relPath string)
	onRemove   func(relPath string)
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	timers   map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the settle time between a write event and the
// onChange callback.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over workspace. extensions filters which files
// trigger callbacks (empty = all); ignoreDirs are directory names never
// descended into.
func New(workspace string, extensions, ignoreDirs []string, onChange, onRemove func(relPath string), opts ...Option) *Watcher {
	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = true
	}
	dirSet := make(map[string]bool, len(ignoreDirs))
	for _, dir := range ignoreDirs {
		dirSet[dir] = true
	}

	w := &Watcher{
		workspace:  workspace,
		extensions: extSet,
		ignoreDirs: dirSet,
		onChange:   onChange,
		onRemove:   onRemove,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		timers:     make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It returns once the workspace tree is registered;
// events are handled on a background goroutine until ctx is cancelled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	w.started = true
	w.mu.Unlock()

	if err := w.addTree(w.workspace); err != nil {
		w.Stop()
		return err
	}

	w.logger.Debug("watcher started", zap.String("workspace", w.workspace))
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, ok := w.relPath(ev.Name)
	if !ok {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() {
			// A new directory: watch it and report its existing files
			if !w.ignoredDir(filepath.Base(ev.Name)) {
				_ = w.addTree(ev.Name)
				w.emitExisting(ev.Name)
			}
			return
		}
		if w.matches(ev.Name) {
			w.scheduleChange(rel)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelTimer(rel)
		if w.matches(ev.Name) && w.onRemove != nil {
			w.logger.Debug("file removed", zap.String("path", rel))
			w.onRemove(rel)
		}
	}
}

// scheduleChange restarts the debounce timer for a path; onChange fires only
// after writes stop arriving for the settle period.
func (w *Watcher) scheduleChange(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[rel]; ok {
		t.Stop()
	}
	w.timers[rel] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, rel)
		w.mu.Unlock()

		w.logger.Debug("file changed", zap.String("path", rel))
		if w.onChange != nil {
			w.onChange(rel)
		}
	})
}

func (w *Watcher) cancelTimer(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[rel]; ok {
		t.Stop()
		delete(w.timers, rel)
	}
}

// addTree registers root and every non-ignored subdirectory with fsnotify.
func (w *Watcher) addTree(root string) error {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignoredDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Debug("failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

// emitExisting reports every matching file already inside root, for
// directories that appear fully populated (moved in or unpacked).
func (w *Watcher) emitExisting(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && w.ignoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.matches(path) {
			if rel, ok := w.relPath(path); ok {
				w.scheduleChange(rel)
			}
		}
		return nil
	})
}

func (w *Watcher) ignoredDir(name string) bool {
	return w.ignoreDirs[name] || strings.HasPrefix(name, ".")
}

func (w *Watcher) matches(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

// relPath converts an absolute event path into a workspace-relative slash
// path. Paths outside the workspace, or inside ignored directories, report
// ok=false.
func (w *Watcher) relPath(path string) (string, bool) {
	rel, err := filepath.Rel(w.workspace, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(filepath.Dir(rel), "/") {
		if part != "." && w.ignoredDir(part) {
			return "", false
		}
	}
	return rel, true
}

// Stop stops the watcher and releases resources. Safe to call more than
// once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.done) })
}
