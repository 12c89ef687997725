package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rampellisaieshwar/GravityEdits/internal/cloud"
)

const chatTimeout = 120 * time.Second

// commandHandler runs tool-call text through the interpreter as one edit.
func commandHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CommandRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			WriteError(w, http.StatusBadRequest, "text is required", CodeBadRequest)
			return
		}

		rep, err := cfg.Session.Execute(cfg.Executor, req.Text)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, CommandToResponse(rep, cfg.Session.Version()))
	}
}

// chatHandler asks the chat backend about the current project and executes
// the fenced tool calls in its reply. A reply with no fence is returned as is.
func chatHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Chat == nil {
			serviceUnavailable(w, "chat backend")
			return
		}
		var req ChatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			WriteError(w, http.StatusBadRequest, "query is required", CodeBadRequest)
			return
		}
		p, ok := snapshotOrConflict(w, cfg)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
		defer cancel()

		reply, err := cfg.Chat.Chat(ctx, cloud.ChatRequest{
			Query:       req.Query,
			ProjectName: p.Name,
			APIKey:      cfg.APIKey,
			State:       p,
		})
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		resp := ChatResponse{Reply: reply}
		rep, err := cfg.Session.ExecuteReply(cfg.Executor, reply)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		if !rep.Unrecognized {
			cr := CommandToResponse(rep, cfg.Session.Version())
			resp.Command = &cr
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
