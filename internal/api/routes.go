package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
)

const maxRequestBody = 8 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	if cfg.Hub != nil {
		r.With(LoopbackGuard()).Get("/playback/ws", cfg.Hub.ServeWS)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/projects", listProjectsHandler(cfg))
		r.Post("/projects/load", loadProjectHandler(cfg))
		r.Post("/projects/import", importProjectHandler(cfg))
		r.Delete("/projects/{name}", deleteProjectHandler(cfg))

		r.Route("/project", func(r chi.Router) {
			r.Get("/", getProjectHandler(cfg))
			r.Post("/save", saveProjectHandler(cfg))
			r.Post("/undo", undoHandler(cfg))
			r.Put("/order", reorderHandler(cfg))
			r.Post("/grading", gradeAllHandler(cfg))

			r.Route("/clips/{id}", func(r chi.Router) {
				r.Patch("/", patchClipHandler(cfg))
				r.Delete("/", deleteClipHandler(cfg))
				r.Post("/split", splitClipHandler(cfg))
				r.Post("/remove-segment", removeSegmentHandler(cfg))
				r.Post("/remove-word", removeWordHandler(cfg))
				r.Post("/move", moveClipHandler(cfg))
			})

			r.Post("/tracks", addTrackHandler(cfg))
			r.Delete("/tracks/{track}", removeTrackHandler(cfg))
			r.Put("/volumes/{key}", trackVolumeHandler(cfg))

			r.Post("/audio", addAudioClipHandler(cfg))
			r.Patch("/audio/{id}", patchAudioClipHandler(cfg))
			r.Post("/audio/{id}/split", splitAudioClipHandler(cfg))
			r.Delete("/audio/{id}", deleteAudioClipHandler(cfg))

			r.Put("/music", setMusicHandler(cfg))
			r.Patch("/music", patchMusicHandler(cfg))
			r.Post("/music/split", splitMusicHandler(cfg))

			r.Post("/overlays", addOverlayHandler(cfg))
			r.Patch("/overlays/{id}", patchOverlayHandler(cfg))
			r.Delete("/overlays/{id}", deleteOverlayHandler(cfg))

			r.Post("/shorts/{index}/enter", enterShortHandler(cfg))
			r.Post("/shorts/exit", exitShortHandler(cfg))
		})

		if cfg.Engine != nil {
			r.Get("/playback", playbackStateHandler(cfg))
			r.Post("/playback/play", playHandler(cfg))
			r.Post("/playback/pause", pauseHandler(cfg))
			r.Post("/playback/toggle", toggleHandler(cfg))
			r.Post("/playback/seek", seekHandler(cfg))
			r.Put("/playback/keep-only", keepOnlyHandler(cfg))
			r.Put("/playback/volume", masterVolumeHandler(cfg))
		}

		if cfg.Media != nil {
			r.With(LoopbackGuard()).Get("/media/*", mediaHandler(cfg))
		}

		r.Post("/commands", commandHandler(cfg))
		r.Post("/chat", chatHandler(cfg))

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Post("/jobs/analysis", submitAnalysisHandler(cfg))
		r.Get("/jobs/analysis/current", currentJobHandler(cfg.AnalysisTracker))
		r.Post("/jobs/analysis/cancel", cancelJobHandler(cfg.AnalysisTracker))
		r.Post("/jobs/render", submitRenderHandler(cfg))
		r.Get("/jobs/render/current", currentJobHandler(cfg.RenderTracker))
		r.Post("/jobs/render/cancel", cancelJobHandler(cfg.RenderTracker))

		r.Post("/export/edl", exportEDLHandler(cfg))
		r.Get("/export/payload", renderPayloadHandler(cfg))

		if cfg.MCP != nil {
			r.Handle("/mcp", cfg.MCP)
			r.Handle("/mcp/*", cfg.MCP)
		}
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Version:     cfg.Session.Version(),
			CanUndo:     cfg.Session.CanUndo(),
			ActiveShort: cfg.Session.ActiveShort(),
		}

		if p := cfg.Session.Snapshot(); p != nil {
			resp.Project = p.Name
			resp.ClipCount = len(p.EDL)
			resp.Duration = p.TotalDuration()
		}
		if cfg.Engine != nil {
			f := cfg.Engine.State()
			resp.Playback = &f
		}
		if cfg.AnalysisTracker != nil {
			if j := cfg.AnalysisTracker.Current(); j.State != jobs.StateIdle {
				resp.AnalysisJob = &j
			}
		}
		if cfg.RenderTracker != nil {
			if j := cfg.RenderTracker.Current(); j.State != jobs.StateIdle {
				resp.RenderJob = &j
			}
		}
		if cfg.Hub != nil {
			resp.PreviewClient = cfg.Hub.ClientCount()
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
		return false
	}
	return true
}

func serviceUnavailable(w http.ResponseWriter, what string) {
	WriteError(w, http.StatusServiceUnavailable, what+" is not configured", "SERVICE_UNAVAILABLE")
}
