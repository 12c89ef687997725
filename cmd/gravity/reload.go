package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/rampellisaieshwar/GravityEdits/internal/session"
	"github.com/rampellisaieshwar/GravityEdits/internal/store"
	"github.com/rampellisaieshwar/GravityEdits/internal/watcher"
)

type fileWatcher interface {
	Watch(ctx context.Context, path string) error
	Unwatch(path string) error
}

// fileReloader keeps the watcher pointed at the loaded project's file and
// reloads the session when that file is edited by another program.
type fileReloader struct {
	ctx     context.Context
	files   *store.FileStore
	session *session.Session
	watcher fileWatcher
	logger  *slog.Logger

	mu      sync.Mutex
	current string
}

func newFileReloader(ctx context.Context, files *store.FileStore, sess *session.Session, w fileWatcher, logger *slog.Logger) *fileReloader {
	return &fileReloader{ctx: ctx, files: files, session: sess, watcher: w, logger: logger}
}

// follow is a session listener.
func (r *fileReloader) follow(session.Event) {
	base := r.session.BaseProject()
	if base == nil {
		return
	}
	path, err := filepath.Abs(r.files.Path(base.Name))
	if err != nil {
		return
	}

	r.mu.Lock()
	prev := r.current
	if prev == path {
		r.mu.Unlock()
		return
	}
	r.current = path
	r.mu.Unlock()

	if prev != "" {
		if err := r.watcher.Unwatch(prev); err != nil {
			r.logger.Warn("failed to unwatch project file", "path", prev, "error", err)
		}
	}
	if err := r.watcher.Watch(r.ctx, path); err != nil {
		r.logger.Warn("failed to watch project file", "path", path, "error", err)
	}
}

// changed is the watcher callback. Writes made by this process are ignored.
func (r *fileReloader) changed(path string, event watcher.EventType) {
	r.mu.Lock()
	current := r.current
	r.mu.Unlock()
	if filepath.Clean(path) != current {
		return
	}
	if event == watcher.EventDelete {
		r.logger.Warn("project file removed on disk; keeping the loaded project", "path", path)
		return
	}
	if !r.files.Changed(path) {
		return
	}

	p, err := r.files.Load(path)
	if err != nil {
		r.logger.Warn("ignoring unreadable project file change", "path", path, "error", err)
		return
	}
	if err := r.session.Load(p); err != nil {
		r.logger.Warn("failed to reload project", "path", path, "error", err)
		return
	}
	r.logger.Info("reloaded project changed on disk", "project", p.Name, "path", path)
}
