package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rampellisaieshwar/GravityEdits/internal/cloud"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/export"
	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
	"github.com/rampellisaieshwar/GravityEdits/internal/session"
)

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.Repository.ListJobs(r.Context(), r.URL.Query().Get("project"), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", CodeInternal)
			return
		}
		if list == nil {
			list = []jobs.Job{}
		}
		WriteJSON(w, http.StatusOK, JobsResponse{Jobs: list})
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", CodeBadRequest)
			return
		}

		for _, t := range []*jobs.Tracker{cfg.AnalysisTracker, cfg.RenderTracker} {
			if t == nil {
				continue
			}
			j, ok, err := t.Lookup(r.Context(), id)
			if err != nil {
				cfg.Logger.Warn("job cache lookup failed", "job_id", id, "error", err)
				continue
			}
			if ok {
				WriteJSON(w, http.StatusOK, j)
				return
			}
		}

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), CodeInternal)
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", CodeNotFound)
			return
		}
		WriteJSON(w, http.StatusOK, job)
	}
}

func submitAnalysisHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Analysis == nil || cfg.AnalysisTracker == nil {
			serviceUnavailable(w, "analysis service")
			return
		}
		var req AnalysisJobRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			WriteError(w, http.StatusBadRequest, "name is required", CodeBadRequest)
			return
		}
		if len(req.FileNames) == 0 {
			WriteError(w, http.StatusBadRequest, "file_names must not be empty", CodeBadRequest)
			return
		}

		job, err := cfg.AnalysisTracker.Start(r.Context(), req.Name, func(ctx context.Context) (string, error) {
			return cfg.Analysis.Submit(ctx, cloud.AnalysisRequest{
				ProjectName: req.Name,
				FileNames:   req.FileNames,
				Description: req.Description,
				APIKey:      cfg.APIKey,
			})
		})
		writeJobStart(w, cfg, job, err)
	}
}

// submitRenderHandler renders the base project, or one of its viral shorts
// when short_index is set.
func submitRenderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Render == nil || cfg.RenderTracker == nil {
			serviceUnavailable(w, "render service")
			return
		}
		var req RenderJobRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Mode != "" && req.Mode != cloud.ModeLocal && req.Mode != cloud.ModeVideoDB {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("mode must be %q or %q", cloud.ModeLocal, cloud.ModeVideoDB), CodeBadRequest)
			return
		}
		if req.Mode == cloud.ModeVideoDB && cfg.VideoDBKey == "" {
			WriteError(w, http.StatusBadRequest, "videodb mode requires a VideoDB key", CodeValidation)
			return
		}

		payload, err := buildPayload(cfg, req.ShortIndex)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		job, err := cfg.RenderTracker.Start(r.Context(), payload.Name, func(ctx context.Context) (string, error) {
			return cfg.Render.Submit(ctx, cloud.RenderRequest{
				Mode:       req.Mode,
				VideoDBKey: cfg.VideoDBKey,
				Project:    payload,
			})
		})
		writeJobStart(w, cfg, job, err)
	}
}

func buildPayload(cfg ServerConfig, shortIndex *int) (*export.RenderPayload, error) {
	base := cfg.Session.BaseProject()
	if base == nil {
		return nil, session.ErrNoProject
	}
	var short *edl.ViralShort
	if shortIndex != nil {
		i := *shortIndex
		if i < 0 || i >= len(base.ViralShorts) {
			return nil, fmt.Errorf("%w: short %d of %d", edl.ErrInvalidArgument, i, len(base.ViralShorts))
		}
		short = &base.ViralShorts[i]
	}
	return export.BuildRenderPayload(base, short)
}

func writeJobStart(w http.ResponseWriter, cfg ServerConfig, job jobs.Job, err error) {
	switch {
	case errors.Is(err, jobs.ErrCancelled):
		WriteJSON(w, http.StatusOK, job)
	case err != nil:
		writeServiceError(w, cfg, err)
	default:
		WriteJSON(w, http.StatusAccepted, job)
	}
}

func currentJobHandler(t *jobs.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t == nil {
			serviceUnavailable(w, "job tracker")
			return
		}
		WriteJSON(w, http.StatusOK, t.Current())
	}
}

func cancelJobHandler(t *jobs.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t == nil {
			serviceUnavailable(w, "job tracker")
			return
		}
		job, err := t.Cancel()
		if err != nil {
			WriteError(w, http.StatusConflict, err.Error(), CodeConflict)
			return
		}
		WriteJSON(w, http.StatusOK, job)
	}
}
