package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/rampellisaieshwar/GravityEdits/internal/command"
	"github.com/rampellisaieshwar/GravityEdits/internal/config"
	"github.com/rampellisaieshwar/GravityEdits/internal/db"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/logging"
	"github.com/rampellisaieshwar/GravityEdits/internal/playback"
	"github.com/rampellisaieshwar/GravityEdits/internal/session"
	"github.com/rampellisaieshwar/GravityEdits/internal/store"
)

var errNoProjectGiven = errors.New("no project given and none saved yet")

// app holds the components shared by every subcommand.
type app struct {
	cfg       *config.EnvConfig
	logger    *slog.Logger
	database  *db.DB
	repo      *store.SQLiteRepository
	files     *store.FileStore
	persister *store.Persister
	session   *session.Session
	executor  *command.Executor

	closers []io.Closer
}

// openApp loads config, logging and storage. Logs go to logOut; the stdio
// MCP server passes stderr because stdout carries the protocol.
func openApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	logger, logCloser := logging.NewLoggerWithOptions(logging.Options{
		Level:      cfg.LogLevel(),
		File:       cfg.LogFile(),
		MaxSizeMB:  cfg.LogMaxSizeMB(),
		MaxBackups: cfg.LogMaxBackups(),
		MaxAgeDays: cfg.LogMaxAgeDays(),
		Output:     logOut,
	})
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.database = database
	a.closers = append(a.closers, database)
	a.repo = store.NewRepository(database.Conn())

	files, err := store.NewFileStore(cfg.ProjectsDir())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.files = files
	a.persister = &store.Persister{Files: files, Repo: a.repo, Logger: logger}

	if cfg.MinioEndpoint() != "" {
		objects, err := store.NewObjectStore(ctx, store.ObjectStoreConfig{
			Endpoint:  cfg.MinioEndpoint(),
			AccessKey: cfg.MinioAccessKey(),
			SecretKey: cfg.MinioSecretKey(),
			Bucket:    cfg.MinioBucket(),
			UseSSL:    cfg.MinioUseSSL(),
		}, logger)
		if err != nil {
			logger.Warn("object store unavailable, backups disabled", "endpoint", cfg.MinioEndpoint(), "error", err)
		} else {
			a.persister.Objects = objects
			logger.Info("project backups enabled", "endpoint", cfg.MinioEndpoint(), "bucket", cfg.MinioBucket())
		}
	}

	a.session = session.New(session.Options{HistoryLimit: cfg.HistoryLimit(), Logger: logger})
	a.executor = command.NewExecutor(logger)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && a.logger != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// restoreLastProject loads the project that was saved most recently. A
// missing or unreadable project leaves the session empty.
func (a *app) restoreLastProject(ctx context.Context) {
	name, err := a.repo.GetConfig(ctx, store.ConfigLastProject)
	if err != nil || name == "" {
		return
	}
	p, err := a.persister.Open(ctx, name)
	if err != nil {
		a.logger.Warn("failed to restore last project", "project", name, "error", err)
		return
	}
	if err := a.session.Load(p); err != nil {
		a.logger.Warn("failed to load last project", "project", name, "error", err)
		return
	}
	a.logger.Info("restored last project", "project", name, "clips", len(p.EDL))
}

// loadProject reads a project from a file path, or by name from storage.
// With neither it falls back to the last saved project.
func (a *app) loadProject(ctx context.Context, name, file string) (*edl.Project, error) {
	if file != "" {
		return a.files.Load(file)
	}
	if name == "" {
		last, err := a.repo.GetConfig(ctx, store.ConfigLastProject)
		if err != nil {
			return nil, fmt.Errorf("read last project: %w", err)
		}
		if last == "" {
			return nil, errNoProjectGiven
		}
		name = last
	}
	return a.persister.Open(ctx, name)
}

// openProject loads the named project into the session. An empty name
// restores the last project when there is one.
func (a *app) openProject(ctx context.Context, name string) error {
	if name == "" {
		a.restoreLastProject(ctx)
		return nil
	}
	p, err := a.loadProject(ctx, name, "")
	if err != nil {
		return err
	}
	return a.session.Load(p)
}

// restorePlayback applies the saved keep-only and master volume settings.
func (a *app) restorePlayback(ctx context.Context, engine *playback.Engine) {
	if v, err := a.repo.GetConfig(ctx, store.ConfigKeepOnly); err == nil && v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			engine.SetKeepOnly(on)
		}
	}
	if v, err := a.repo.GetConfig(ctx, store.ConfigMasterVolume); err == nil && v != "" {
		if vol, err := strconv.ParseFloat(v, 64); err == nil {
			engine.SetMasterVolume(vol)
		}
	}
}

func ensureAuthToken(ctx context.Context, repo store.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, store.ConfigAuthToken)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, store.ConfigAuthToken, token); err != nil {
		return "", err
	}

	return token, nil
}
