package api

import (
	"net/http"
	"strconv"

	"github.com/rampellisaieshwar/GravityEdits/internal/export"
)

// exportEDLHandler writes a CMX3600 EDL of the current timeline. Without an
// output directory the EDL text is returned inline.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportEDLRequest
		if !decodeBody(w, r, &req) {
			return
		}
		p, ok := snapshotOrConflict(w, cfg)
		if !ok {
			return
		}

		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = export.DefaultFrameRate
		}

		dir := req.OutputDir
		if dir == "" {
			dir = cfg.ExportDir
		}
		if dir == "" {
			events := export.Events(p)
			WriteJSON(w, http.StatusOK, export.EDLResult{
				Status:     "ok",
				Format:     "cmx3600",
				EventCount: len(events),
				Content:    export.GenerateEDL(events, p.Name, frameRate),
			})
			return
		}

		res, err := export.WriteEDL(p, dir, frameRate)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		cfg.Logger.Info("edl exported", "path", res.OutputPath, "events", res.EventCount)
		WriteJSON(w, http.StatusOK, res)
	}
}

// renderPayloadHandler previews the document a render job would submit.
func renderPayloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var shortIndex *int
		if s := r.URL.Query().Get("short"); s != "" {
			i, err := strconv.Atoi(s)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "short must be an integer", CodeBadRequest)
				return
			}
			shortIndex = &i
		}

		payload, err := buildPayload(cfg, shortIndex)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, payload)
	}
}
