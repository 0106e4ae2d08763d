// Package watcher watches the templates directory with fsnotify and triggers
// debounced registry reloads when template files change.
package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches a template directory tree and invokes onReload, debounced,
// whenever a .json file is created, written, removed, or renamed. The reload
// is whole-directory because the registry swaps its cache atomically.
type Watcher struct {
	root     string
	onReload func()
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	done    chan struct{}
	started bool
}

// New creates a watcher over root. onReload is called after changes settle.
func New(root string, onReload func(), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		root:     root,
		onReload: onReload,
		debounce: defaultDebounce,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addTree(fsw, w.root); err != nil {
		_ = fsw.Close()
		return err
	}
	w.watcher = fsw
	w.done = make(chan struct{})
	w.started = true
	w.logger.Debug("template watcher started", zap.String("root", w.root))
	go w.run(ctx, fsw, w.done)
	return nil
}

// addTree adds root and every subdirectory to the fsnotify watcher.
func addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("template watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	// New subdirectories must be watched before their files produce events.
	if ev.Op.Has(fsnotify.Create) {
		w.mu.Lock()
		if w.watcher != nil {
			_ = addTree(w.watcher, ev.Name)
		}
		w.mu.Unlock()
	}
	if !strings.EqualFold(filepath.Ext(ev.Name), ".json") {
		return
	}
	if strings.HasPrefix(filepath.Base(ev.Name), "_") {
		return
	}
	w.logger.Debug("template file event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	w.scheduleReload()
}

// scheduleReload debounces bursts of file events into one reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.logger.Debug("reloading templates (debounced)")
		if w.onReload != nil {
			w.onReload()
		}
	})
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started || w.watcher == nil {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	close(w.done)
}
