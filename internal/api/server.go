package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rampellisaieshwar/GravityEdits/internal/cloud"
	"github.com/rampellisaieshwar/GravityEdits/internal/command"
	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
	"github.com/rampellisaieshwar/GravityEdits/internal/playback"
	"github.com/rampellisaieshwar/GravityEdits/internal/session"
	"github.com/rampellisaieshwar/GravityEdits/internal/store"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// ServerConfig wires the editor components into the HTTP surface. Cloud
// clients and trackers are optional; their routes answer 503 when unset.
type ServerConfig struct {
	Port       int
	Version    string
	Session    *session.Session
	Executor   *command.Executor
	Engine     *playback.Engine
	Media      *playback.MediaServer
	Hub        *Hub
	Persister  *store.Persister
	Repository store.Repository
	ExportDir  string
	MCP        http.Handler

	Analysis        *cloud.AnalysisClient
	Render          *cloud.RenderClient
	Chat            cloud.ChatClient
	AnalysisTracker *jobs.Tracker
	RenderTracker   *jobs.Tracker
	APIKey          string
	VideoDBKey      string

	Logger    *slog.Logger
	StartTime time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
