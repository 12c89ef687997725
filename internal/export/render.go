package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/shorts"
)

var ErrEmptyRender = errors.New("nothing to render")

// BuildRenderPayload prepares p for the render service. With a short, only
// the short's clips are sent in portrait orientation, global music and
// secondary audio are dropped, and overlays that started inside a short clip
// are moved to that clip's new position.
func BuildRenderPayload(p *edl.Project, short *edl.ViralShort) (*RenderPayload, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: no project", ErrEmptyRender)
	}

	payload := &RenderPayload{
		Name:           p.Name,
		RenderMode:     OrientationLandscape,
		GlobalSettings: p.GlobalSettings,
		Filter:         p.GlobalSettings.FilterSuggestion,
		BgMusic:        p.BgMusic,
		AudioClips:     p.AudioClips,
		AudioTracks:    p.AudioTracks,
		TrackVolumes:   p.TrackVolumes,
		Overlays:       p.Overlays,
	}

	if short == nil {
		payload.Clips = renderClips(p.EDL)
		if len(Events(p)) == 0 {
			return nil, fmt.Errorf("%w: every clip is rejected", ErrEmptyRender)
		}
		return payload, nil
	}

	derived, res := shorts.Derive(p, *short)
	if len(res.Resolved) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrEmptyRender, shorts.ErrNoResolvableClips)
	}

	payload.Name = p.Name + "_" + strings.Join(strings.Fields(short.Title), "_")
	payload.RenderMode = OrientationPortrait
	payload.BgMusic = nil
	payload.AudioClips = []edl.AudioClip{}
	payload.Clips = renderClips(derived.EDL)
	payload.Overlays = remapOverlays(p, derived.EDL)
	return payload, nil
}

func renderClips(clips []edl.Clip) []RenderClip {
	out := make([]RenderClip, len(clips))
	for i, c := range clips {
		out[i] = RenderClip{
			ID:           c.ID,
			Source:       c.Source,
			Keep:         c.Keep,
			Start:        c.Start,
			End:          c.End,
			Text:         c.Text,
			ColorGrading: c.ColorGrading,
		}
	}
	return out
}

// remapOverlays moves each overlay whose start falls inside one of the
// selected clips' spans in the base timeline to the same offset within that
// clip's slot in the new sequence.
func remapOverlays(base *edl.Project, selected []edl.Clip) []edl.TextOverlay {
	starts := make(map[string]float64, len(base.EDL))
	t := 0.0
	for _, c := range base.EDL {
		starts[c.ID] = t
		t += c.Duration()
	}

	out := []edl.TextOverlay{}
	at := 0.0
	for _, c := range selected {
		dur := c.Duration()
		if dur <= 0 {
			continue
		}
		from := starts[c.ID]
		for _, o := range base.Overlays {
			if o.Start >= from && o.Start < from+dur {
				moved := o
				moved.Start = at + (o.Start - from)
				out = append(out, moved)
			}
		}
		at += dur
	}
	return out
}
