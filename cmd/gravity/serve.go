package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rampellisaieshwar/GravityEdits/internal/api"
	"github.com/rampellisaieshwar/GravityEdits/internal/cloud"
	"github.com/rampellisaieshwar/GravityEdits/internal/config"
	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
	"github.com/rampellisaieshwar/GravityEdits/internal/logging"
	gravitymcp "github.com/rampellisaieshwar/GravityEdits/internal/mcp"
	"github.com/rampellisaieshwar/GravityEdits/internal/playback"
	"github.com/rampellisaieshwar/GravityEdits/internal/store"
	"github.com/rampellisaieshwar/GravityEdits/internal/ui"
	"github.com/rampellisaieshwar/GravityEdits/internal/watcher"
)

const importTimeout = 60 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local editing agent",
		Long:  "Serve the HTTP API and preview websocket on 127.0.0.1, run the playback engine and show the system tray unless headless.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	startTime := time.Now()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := openApp(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	logger.Info("starting gravity agent", "version", Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	exportDir := filepath.Join(cfg.DataDir(), "exports")
	for _, dir := range []string{cfg.MediaDir(), exportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	authToken, err := ensureAuthToken(ctx, a.repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║  GRAVITY EDITS AGENT v%-56s║\n", Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-48d║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-64s ║\n", authToken)
	fmt.Printf("║  Projects:   %-64s ║\n", cfg.ProjectsDir())
	fmt.Println("╚═══════════════════════════════════════════════════════════════════════════════╝")
	fmt.Println()

	engine := playback.NewEngine(playback.EngineConfig{
		Source:   a.session,
		Deck:     playback.NewRemoteDeck(time.Now),
		Interval: cfg.TickInterval(),
		Logger:   logging.WithComponent(logger, "playback"),
	})
	a.restorePlayback(ctx, engine)

	hub := api.NewHub(engine, logging.WithComponent(logger, "hub"))
	hub.FollowSession(a.session)

	fsw, err := watcher.NewFSWatcher(logging.WithComponent(logger, "watcher"), watcher.DefaultDebounce)
	if err != nil {
		logger.Warn("file watcher unavailable, external edits will not reload", "error", err)
	} else {
		defer fsw.Stop()
		reloader := newFileReloader(ctx, a.files, a.session, fsw, logger)
		fsw.OnChange(reloader.changed)
		a.session.OnChange(reloader.follow)
	}

	a.restoreLastProject(ctx)

	var shared jobs.StatusCache
	if addr := cfg.RedisAddr(); addr != "" {
		rc, err := jobs.NewRedisCache(ctx, jobs.RedisOptions{
			Addr:     addr,
			Password: cfg.RedisPassword(),
			DB:       cfg.RedisDB(),
		})
		if err != nil {
			logger.Warn("redis job cache unavailable, using local cache", "error", err)
		} else {
			shared = rc
			a.closers = append(a.closers, rc)
			logger.Info("redis job cache enabled", "addr", addr)
		}
	}
	jobCache := store.NewJobCache(a.repo, shared)
	jobsLogger := logging.WithComponent(logger, "jobs")

	svcOpts := func(url string) cloud.Options {
		return cloud.Options{BaseURL: url, Token: cfg.ServiceToken(), Logger: logger}
	}
	analysis := cloud.NewAnalysisClient(svcOpts(cfg.AnalysisURL()))
	render := cloud.NewRenderClient(svcOpts(cfg.RenderURL()))

	analysisTracker := jobs.NewTracker(jobs.Config{
		Kind:         jobs.KindAnalysis,
		Client:       analysis,
		Cache:        jobCache,
		PollInterval: cfg.PollInterval(),
		MaxAttempts:  cfg.MaxAttempts(),
		Logger:       jobsLogger,
	})
	renderTracker := jobs.NewTracker(jobs.Config{
		Kind:         jobs.KindRender,
		Client:       render,
		Cache:        jobCache,
		PollInterval: cfg.PollInterval(),
		MaxAttempts:  cfg.MaxAttempts(),
		Logger:       jobsLogger,
	})
	hub.FollowJobs(analysisTracker, renderTracker)
	analysisTracker.OnUpdate(func(j jobs.Job) {
		if j.State == jobs.StateCompleted {
			go importAnalysis(ctx, a, analysis, j)
		}
	})

	mcpServer := gravitymcp.NewServer(gravitymcp.Config{
		Session:  a.session,
		Executor: a.executor,
		Engine:   engine,
		Version:  Version,
		Logger:   logging.WithComponent(logger, "mcp"),
	})
	var mcpHandler http.Handler
	if cfg.MCPHTTP() {
		mcpHandler = gravitymcp.NewHTTPHandler(mcpServer)
		logger.Info("mcp over http enabled", "path", config.DefaultMCPPath)
	}

	go engine.Start(ctx)
	go hub.Run(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:            cfg.Port(),
		Version:         Version,
		Session:         a.session,
		Executor:        a.executor,
		Engine:          engine,
		Media:           playback.NewMediaServer(cfg.MediaDir(), logger),
		Hub:             hub,
		Persister:       a.persister,
		Repository:      a.repo,
		ExportDir:       exportDir,
		MCP:             mcpHandler,
		Analysis:        analysis,
		Render:          render,
		Chat:            newChatClient(a),
		AnalysisTracker: analysisTracker,
		RenderTracker:   renderTracker,
		APIKey:          cfg.APIKey(),
		VideoDBKey:      cfg.VideoDBKey(),
		Logger:          logger,
		StartTime:       startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Engine:  engine,
			Session: a.session,
			Logger:  logging.WithComponent(logger, "tray"),
			OnKeepOnly: func(enabled bool) {
				if err := a.repo.SetConfig(context.Background(), store.ConfigKeepOnly, strconv.FormatBool(enabled)); err != nil {
					logger.Warn("failed to persist keep-only", "error", err)
				}
			},
			OnQuit: quit,
		})
		go tray.Run(ctx)
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newChatClient picks the configured chat backend. The OpenAI backend needs
// a key; without one the chat service is used.
func newChatClient(a *app) cloud.ChatClient {
	cfg := a.cfg
	if cfg.ChatBackend() == config.ChatBackendOpenAI {
		if cfg.OpenAIKey() != "" {
			a.logger.Info("chat backend: openai", "model", cfg.OpenAIModel())
			return cloud.NewOpenAIChat(cloud.OpenAIChatConfig{
				APIKey:  cfg.OpenAIKey(),
				BaseURL: cfg.OpenAIBaseURL(),
				Model:   cfg.OpenAIModel(),
			})
		}
		a.logger.Warn("openai chat backend selected without " + config.EnvOpenAIKey + "; using the chat service")
	}
	return cloud.NewServiceChat(cloud.Options{BaseURL: cfg.ChatURL(), Token: cfg.ServiceToken(), Logger: a.logger})
}

// importAnalysis loads a finished analysis into the session and saves it.
func importAnalysis(ctx context.Context, a *app, analysis *cloud.AnalysisClient, j jobs.Job) {
	logger := logging.WithJobID(logging.WithProject(a.logger, j.Project), j.ID)

	ctx, cancel := context.WithTimeout(ctx, importTimeout)
	defer cancel()

	p, merged, err := analysis.Import(ctx, j.Project)
	if err != nil {
		logger.Error("failed to import finished analysis", "error", err)
		return
	}
	if err := a.session.Load(p); err != nil {
		logger.Error("failed to load imported project", "error", err)
		return
	}
	if _, err := a.persister.Save(ctx, a.session.Snapshot()); err != nil {
		logger.Warn("failed to save imported project", "error", err)
	}
	logger.Info("analysis imported", "clips", len(p.EDL), "metadata_merged", merged)
}
