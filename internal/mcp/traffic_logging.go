package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const maxLoggedPayload = 2048

// trafficLoggingMiddleware logs every request and response at debug level.
func trafficLoggingMiddleware(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			sessionID := safeSessionID(req)
			logger.Debug("mcp traffic", "direction", direction, "stage", "request", "method", method,
				"session_id", sessionID, "params", formatPayload(safeParams(req)))

			start := time.Now()
			result, err := next(ctx, method, req)
			if strings.HasPrefix(method, "notifications/") {
				return result, err
			}

			attrs := []any{"direction", direction, "stage", "response", "method", method,
				"session_id", sessionID, "duration_ms", time.Since(start).Milliseconds(),
				"result", formatPayload(result)}
			if err != nil {
				attrs = append(attrs, "error", err)
			}
			logger.Debug("mcp traffic", attrs...)
			return result, err
		}
	}
}

// The SDK's request accessors panic on some zero-valued notifications.
func safeSessionID(req sdkmcp.Request) (id string) {
	if req == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	if s := req.GetSession(); s != nil {
		return s.ID()
	}
	return ""
}

func safeParams(req sdkmcp.Request) (params any) {
	if req == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			params = nil
		}
	}()
	return req.GetParams()
}

func formatPayload(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%T", payload)
	}
	if len(data) > maxLoggedPayload {
		return string(data[:maxLoggedPayload]) + "..."
	}
	return string(data)
}
