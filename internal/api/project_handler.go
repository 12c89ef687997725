package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
)

const importTimeout = 60 * time.Second

func projectResponse(cfg ServerConfig) ProjectResponse {
	return ProjectResponse{
		Version:     cfg.Session.Version(),
		ActiveShort: cfg.Session.ActiveShort(),
		CanUndo:     cfg.Session.CanUndo(),
		Project:     cfg.Session.Snapshot(),
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := projectResponse(cfg)
		if resp.Project == nil {
			WriteError(w, http.StatusNotFound, "no project loaded", CodeNotFound)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := cfg.Repository.ListProjects(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", CodeInternal)
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectSummaryResponse, len(summaries))}
		for i, s := range summaries {
			resp.Projects[i] = ProjectSummaryResponse{
				Name:      s.Name,
				ClipCount: s.ClipCount,
				Duration:  s.Duration,
				UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// loadProjectHandler loads either an inline project or a saved one by name.
func loadProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoadProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}

		p := req.Project
		if p == nil {
			if req.Name == "" {
				WriteError(w, http.StatusBadRequest, "name or project is required", CodeBadRequest)
				return
			}
			if cfg.Persister == nil {
				serviceUnavailable(w, "project storage")
				return
			}
			var err error
			p, err = cfg.Persister.Open(r.Context(), req.Name)
			if err != nil {
				writeServiceError(w, cfg, err)
				return
			}
		}

		if err := cfg.Session.Load(p); err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		cfg.Logger.Info("project loaded", "project", p.Name, "clips", len(p.EDL))
		WriteJSON(w, http.StatusOK, projectResponse(cfg))
	}
}

// importProjectHandler pulls a finished analysis from the analysis service,
// loads it and saves it locally.
func importProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Analysis == nil {
			serviceUnavailable(w, "analysis service")
			return
		}
		var req ImportProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			WriteError(w, http.StatusBadRequest, "name is required", CodeBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), importTimeout)
		defer cancel()

		p, merged, err := cfg.Analysis.Import(ctx, req.Name)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		if err := cfg.Session.Load(p); err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		if cfg.Persister != nil {
			if _, err := cfg.Persister.Save(ctx, cfg.Session.Snapshot()); err != nil {
				cfg.Logger.Warn("failed to save imported project", "project", p.Name, "error", err)
			}
		}

		cfg.Logger.Info("project imported", "project", p.Name, "clips", len(p.EDL), "metadata_merged", merged)
		WriteJSON(w, http.StatusOK, ImportProjectResponse{
			ProjectResponse: projectResponse(cfg),
			MetadataMerged:  merged,
		})
	}
}

// saveProjectHandler persists the base project. While a short is open the
// derived timeline is never saved.
func saveProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Persister == nil {
			serviceUnavailable(w, "project storage")
			return
		}
		p := cfg.Session.BaseProject()
		if p == nil {
			WriteError(w, http.StatusConflict, "no project loaded", CodeConflict)
			return
		}

		path, err := cfg.Persister.Save(r.Context(), p)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, SaveProjectResponse{Name: p.Name, Path: path})
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" {
			WriteError(w, http.StatusBadRequest, "project name required", CodeBadRequest)
			return
		}
		if err := cfg.Repository.DeleteProject(r.Context(), name); err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func undoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Session.Undo(); err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, projectResponse(cfg))
	}
}

func enterShortHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := intParam(w, r, "index")
		if !ok {
			return
		}
		res, err := cfg.Session.EnterShort(index)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, ShortResponse{
			Version: cfg.Session.Version(),
			Result:  res,
			Partial: res.Partial(),
		})
	}
}

func exitShortHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Session.ExitShort(); err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, projectResponse(cfg))
	}
}

// snapshotOrConflict returns the current project or writes a 409.
func snapshotOrConflict(w http.ResponseWriter, cfg ServerConfig) (*edl.Project, bool) {
	p := cfg.Session.Snapshot()
	if p == nil {
		WriteError(w, http.StatusConflict, "no project loaded", CodeConflict)
		return nil, false
	}
	return p, true
}
