package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
)

// applyEdit runs fn as one undoable session edit and answers with the new
// version and any ids fn minted.
func applyEdit(w http.ResponseWriter, cfg ServerConfig, op string, fn func(p *edl.Project) ([]string, error)) {
	var ids []string
	err := cfg.Session.Apply(op, func(p *edl.Project) error {
		var err error
		ids, err = fn(p)
		return err
	})
	if err != nil {
		writeServiceError(w, cfg, err)
		return
	}
	WriteJSON(w, http.StatusOK, EditResponse{Version: cfg.Session.Version(), IDs: ids})
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		WriteError(w, http.StatusBadRequest, name+" must be an integer", CodeBadRequest)
		return 0, false
	}
	return v, true
}

func splitClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req SplitRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if (req.Offset == nil) == (req.SourceTime == nil) {
			WriteError(w, http.StatusBadRequest, "exactly one of offset or source_time is required", CodeBadRequest)
			return
		}

		applyEdit(w, cfg, "split", func(p *edl.Project) ([]string, error) {
			var right string
			var err error
			if req.Offset != nil {
				right, err = p.Split(id, *req.Offset)
			} else {
				right, err = p.SplitAt(id, *req.SourceTime)
			}
			if err != nil {
				return nil, err
			}
			return []string{id, right}, nil
		})
	}
}

func removeSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req RemoveSegmentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		applyEdit(w, cfg, "remove segment", func(p *edl.Project) ([]string, error) {
			return p.RemoveSegment(id, req.Start, req.End)
		})
	}
}

func removeWordHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req RemoveWordRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Word == "" {
			WriteError(w, http.StatusBadRequest, "word is required", CodeBadRequest)
			return
		}

		var removed edl.Word
		var ids []string
		err := cfg.Session.Apply("remove word", func(p *edl.Project) error {
			var err error
			removed, ids, err = p.RemoveWord(id, req.Word)
			return err
		})
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, EditResponse{Version: cfg.Session.Version(), IDs: ids, Word: &removed})
	}
}

// patchClipHandler applies keep, transcript, trim and grade changes together.
func patchClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req ClipPatchRequest
		if !decodeBody(w, r, &req) {
			return
		}

		applyEdit(w, cfg, "update clip", func(p *edl.Project) ([]string, error) {
			if req.Keep != nil {
				if err := p.SetKeep(id, *req.Keep); err != nil {
					return nil, err
				}
			}
			if req.Text != nil {
				if err := p.SetText(id, *req.Text); err != nil {
					return nil, err
				}
			}
			if req.Start != nil || req.End != nil {
				c, err := p.Clip(id)
				if err != nil {
					return nil, err
				}
				start, end := c.Start, c.End
				if req.Start != nil {
					start = *req.Start
				}
				if req.End != nil {
					end = *req.End
				}
				if err := p.Trim(id, start, end); err != nil {
					return nil, err
				}
			}
			if req.ColorGrading != nil {
				if err := p.SetColorGrading(id, *req.ColorGrading); err != nil {
					return nil, err
				}
			}
			if _, err := p.Clip(id); err != nil {
				return nil, err
			}
			return nil, nil
		})
	}
}

func deleteClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		applyEdit(w, cfg, "delete clip", func(p *edl.Project) ([]string, error) {
			return nil, p.DeleteClip(id)
		})
	}
}

func moveClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req MoveClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		applyEdit(w, cfg, "move clip", func(p *edl.Project) ([]string, error) {
			return nil, p.MoveClip(id, req.To)
		})
	}
}

func reorderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReorderRequest
		if !decodeBody(w, r, &req) {
			return
		}
		applyEdit(w, cfg, "reorder", func(p *edl.Project) ([]string, error) {
			return nil, p.Reorder(req.IDs)
		})
	}
}

func gradeAllHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GradingRequest
		if !decodeBody(w, r, &req) {
			return
		}
		applyEdit(w, cfg, "grade all", func(p *edl.Project) ([]string, error) {
			p.ApplyGradingToAll(req.ColorGrading)
			return nil, nil
		})
	}
}

func addTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var track int
		err := cfg.Session.Apply("add track", func(p *edl.Project) error {
			track = p.AddTrack()
			return nil
		})
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusCreated, TrackResponse{Version: cfg.Session.Version(), Track: track})
	}
}

func removeTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		track, ok := intParam(w, r, "track")
		if !ok {
			return
		}
		applyEdit(w, cfg, "remove track", func(p *edl.Project) ([]string, error) {
			return nil, p.RemoveTrack(track)
		})
	}
}

func trackVolumeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		var req TrackVolumeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		applyEdit(w, cfg, "track volume", func(p *edl.Project) ([]string, error) {
			return nil, p.SetTrackVolume(key, req.Volume)
		})
	}
}

func addAudioClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddAudioClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		applyEdit(w, cfg, "add audio", func(p *edl.Project) ([]string, error) {
			c, err := p.AddAudioClip(req.Source, req.Start, req.Track, req.Duration)
			if err != nil {
				return nil, err
			}
			return []string{c.ID}, nil
		})
	}
}

func patchAudioClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var patch edl.AudioPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		applyEdit(w, cfg, "update audio", func(p *edl.Project) ([]string, error) {
			return nil, p.UpdateAudioClip(id, patch)
		})
	}
}

func splitAudioClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req AudioSplitRequest
		if !decodeBody(w, r, &req) {
			return
		}
		applyEdit(w, cfg, "split audio", func(p *edl.Project) ([]string, error) {
			ids, err := p.SplitAudioClip(id, req.Offset)
			if err != nil {
				return nil, err
			}
			return ids[:], nil
		})
	}
}

func deleteAudioClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		applyEdit(w, cfg, "remove audio", func(p *edl.Project) ([]string, error) {
			return nil, p.RemoveAudioClip(id)
		})
	}
}

func setMusicHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m edl.BgMusic
		if !decodeBody(w, r, &m) {
			return
		}
		applyEdit(w, cfg, "set music", func(p *edl.Project) ([]string, error) {
			return nil, p.SetBgMusic(m)
		})
	}
}

func patchMusicHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BgMusicPatchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		applyEdit(w, cfg, "update music", func(p *edl.Project) ([]string, error) {
			return nil, p.UpdateBgMusic(req.Start, req.Duration)
		})
	}
}

func splitMusicHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BgMusicSplitRequest
		if !decodeBody(w, r, &req) {
			return
		}
		applyEdit(w, cfg, "split music", func(p *edl.Project) ([]string, error) {
			ids, err := p.SplitBgMusic(req.At)
			if err != nil {
				return nil, err
			}
			return ids[:], nil
		})
	}
}

func addOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var o edl.TextOverlay
		if !decodeBody(w, r, &o) {
			return
		}
		applyEdit(w, cfg, "add overlay", func(p *edl.Project) ([]string, error) {
			added, err := p.AddOverlay(o)
			if err != nil {
				return nil, err
			}
			return []string{added.ID}, nil
		})
	}
}

func patchOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var patch edl.OverlayPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		applyEdit(w, cfg, "update overlay", func(p *edl.Project) ([]string, error) {
			return nil, p.UpdateOverlay(id, patch)
		})
	}
}

func deleteOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		applyEdit(w, cfg, "remove overlay", func(p *edl.Project) ([]string, error) {
			return nil, p.RemoveOverlay(id)
		})
	}
}
