// Package watcher reports changes to project files made outside the process.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 300 * time.Millisecond

var ErrStopped = errors.New("watcher stopped")

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FSWatcher watches individual files through their parent directories, so
// editors that save by writing a temp file and renaming it are still seen.
// Bursts of events for one file collapse into a single callback after the
// debounce interval.
type FSWatcher struct {
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	files    map[string]bool
	dirs     map[string]int
	pending  map[string]*time.Timer
	last     map[string]EventType
	callback func(path string, event EventType)
	stopped  bool
}

func NewFSWatcher(logger *slog.Logger, debounce time.Duration) (*FSWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &FSWatcher{
		logger:   logger,
		debounce: debounce,
		fsw:      fsw,
		files:    make(map[string]bool),
		dirs:     make(map[string]int),
		pending:  make(map[string]*time.Timer),
		last:     make(map[string]EventType),
	}, nil
}

func (w *FSWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

// Watch adds path. The first call starts the event loop, which ends when ctx
// is done or Stop is called.
func (w *FSWatcher) Watch(ctx context.Context, path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}
	if w.files[path] {
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	first := len(w.files) == 0
	w.dirs[dir]++
	w.files[path] = true

	if first {
		go w.loop(ctx)
	}
	w.logger.Info("watching project file", "path", path)
	return nil
}

// Unwatch stops reporting changes to path.
func (w *FSWatcher) Unwatch(path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[path] {
		return nil
	}
	delete(w.files, path)
	if t := w.pending[path]; t != nil {
		t.Stop()
		delete(w.pending, path)
	}
	w.dirs[dir]--
	if w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		return w.fsw.Remove(dir)
	}
	return nil
}

func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *FSWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *FSWatcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	var kind EventType
	switch {
	case ev.Has(fsnotify.Create):
		kind = EventCreate
	case ev.Has(fsnotify.Write):
		kind = EventModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		kind = EventDelete
	default:
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || !w.files[path] {
		return
	}
	// A delete followed by a create is a replace; report it as a modify.
	if prev, ok := w.last[path]; ok && prev == EventDelete && kind == EventCreate {
		kind = EventModify
	}
	w.last[path] = kind

	if t := w.pending[path]; t != nil {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

func (w *FSWatcher) fire(path string) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	kind := w.last[path]
	delete(w.pending, path)
	delete(w.last, path)
	cb := w.callback
	w.mu.Unlock()

	w.logger.Debug("project file changed", "path", path, "event", kind.String())
	if cb != nil {
		cb(path, kind)
	}
}
