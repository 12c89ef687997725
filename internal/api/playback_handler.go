package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rampellisaieshwar/GravityEdits/internal/store"
)

func playbackStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Engine.State())
	}
}

func playHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Engine.Play())
	}
}

func pauseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Engine.Pause())
	}
}

func toggleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Engine.Toggle())
	}
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SeekRequest
		if !decodeBody(w, r, &req) {
			return
		}

		switch {
		case req.ClipID != "":
			f, err := cfg.Engine.SeekToClip(req.ClipID)
			if err != nil {
				writeServiceError(w, cfg, err)
				return
			}
			WriteJSON(w, http.StatusOK, f)
		case req.Time != nil:
			WriteJSON(w, http.StatusOK, cfg.Engine.Seek(*req.Time))
		default:
			WriteError(w, http.StatusBadRequest, "time or clip_id is required", CodeBadRequest)
		}
	}
}

func keepOnlyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req KeepOnlyRequest
		if !decodeBody(w, r, &req) {
			return
		}
		f := cfg.Engine.SetKeepOnly(req.Enabled)
		rememberSetting(r, cfg, store.ConfigKeepOnly, strconv.FormatBool(req.Enabled))
		WriteJSON(w, http.StatusOK, f)
	}
}

func masterVolumeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VolumeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		f := cfg.Engine.SetMasterVolume(req.Volume)
		rememberSetting(r, cfg, store.ConfigMasterVolume, strconv.FormatFloat(f.Master, 'f', -1, 64))
		WriteJSON(w, http.StatusOK, f)
	}
}

// rememberSetting persists a playback preference so it survives restarts.
func rememberSetting(r *http.Request, cfg ServerConfig, key, value string) {
	if err := cfg.Repository.SetConfig(r.Context(), key, value); err != nil {
		cfg.Logger.Warn("failed to persist setting", "key", key, "error", err)
	}
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "*")
		if name == "" {
			WriteError(w, http.StatusBadRequest, "media name required", CodeBadRequest)
			return
		}
		if err := cfg.Media.Serve(w, r, name); err != nil {
			cfg.Logger.Error("media error", "error", err, "name", name)
		}
	}
}
