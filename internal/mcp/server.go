// Package mcp exposes the timeline edit commands as Model Context Protocol
// tools so assistants can drive the editor directly.
package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rampellisaieshwar/GravityEdits/internal/command"
	"github.com/rampellisaieshwar/GravityEdits/internal/playback"
	"github.com/rampellisaieshwar/GravityEdits/internal/session"
)

const serverInstructions = `Gravity Edits timeline tools.
Clip ids come from get_timeline. Times are seconds; split_clip and remove_segment take
source-absolute times, seek takes timeline time. Every edit is undoable with undo_action.`

// Config wires the MCP server to the live session.
type Config struct {
	Session  *session.Session
	Executor *command.Executor
	Engine   *playback.Engine
	Version  string
	Logger   *slog.Logger
}

// NewServer creates an MCP server with every tool and the traffic logger.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "gravity-edits",
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, &tools{
		session:  cfg.Session,
		executor: cfg.Executor,
		engine:   cfg.Engine,
		logger:   cfg.Logger,
	})
	return server
}

// NewHTTPHandler serves server over the streamable HTTP transport.
func NewHTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return server },
		&sdkmcp.StreamableHTTPOptions{
			SessionTimeout: 30 * time.Minute,
		},
	)
}

// RunStdio serves server on stdin/stdout until ctx is cancelled or the
// client disconnects.
func RunStdio(ctx context.Context, server *sdkmcp.Server) error {
	return server.Run(ctx, &sdkmcp.StdioTransport{})
}
