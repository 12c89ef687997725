package edl

import (
	"fmt"
)

// AudioPatch carries the optional fields of an audio clip update.
type AudioPatch struct {
	Start    *float64 `json:"start,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Track    *int     `json:"track,omitempty"`
}

func (p *Project) audioIndex(id string) int {
	for i := range p.AudioClips {
		if p.AudioClips[i].ID == id {
			return i
		}
	}
	return -1
}

// AddAudioClip places source on track at timeline time start. A non-positive
// duration falls back to DefaultAudioDuration. Unknown tracks are activated.
func (p *Project) AddAudioClip(source string, start float64, track int, duration float64) (AudioClip, error) {
	if source == "" {
		return AudioClip{}, fmt.Errorf("%w: audio clip needs a source", ErrInvalidArgument)
	}
	if start < 0 || track < 1 {
		return AudioClip{}, fmt.Errorf("%w: audio clip at %.3fs on track %d", ErrInvalidArgument, start, track)
	}
	if duration <= 0 {
		duration = DefaultAudioDuration
	}
	clip := AudioClip{
		ID:       NewID("audio"),
		Source:   source,
		Start:    start,
		Duration: duration,
		Track:    track,
	}
	if track != 1 && !p.hasTrack(track) {
		p.AudioTracks = appendTrack(p.AudioTracks, track)
	}
	p.AudioClips = append(p.AudioClips, clip)
	return clip, nil
}

func (p *Project) UpdateAudioClip(id string, patch AudioPatch) error {
	idx := p.audioIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrAudioClipNotFound, id)
	}
	updated := p.AudioClips[idx]
	if patch.Start != nil {
		updated.Start = *patch.Start
	}
	if patch.Duration != nil {
		updated.Duration = *patch.Duration
	}
	if patch.Track != nil {
		updated.Track = *patch.Track
	}
	if updated.Start < 0 || updated.Duration <= 0 || updated.Track < 1 {
		return fmt.Errorf("%w: audio clip %s update", ErrInvalidArgument, id)
	}
	if updated.Track != 1 && !p.hasTrack(updated.Track) {
		p.AudioTracks = appendTrack(p.AudioTracks, updated.Track)
	}
	p.AudioClips[idx] = updated
	return nil
}

// SplitAudioClip cuts an audio clip offset seconds after its start. Both
// fragments receive new ids; offset must fall strictly inside the clip.
func (p *Project) SplitAudioClip(id string, offset float64) ([2]string, error) {
	idx := p.audioIndex(id)
	if idx < 0 {
		return [2]string{}, fmt.Errorf("%w: %s", ErrAudioClipNotFound, id)
	}
	orig := p.AudioClips[idx]
	if offset <= 0 || offset >= orig.Duration {
		return [2]string{}, fmt.Errorf("%w: audio split at %.3fs of %.3fs", ErrSplitOutOfRange, offset, orig.Duration)
	}

	first := orig
	first.ID = NewID("audio")
	first.Duration = offset

	second := orig
	second.ID = NewID("audio")
	second.Start = orig.Start + offset
	second.Duration = orig.Duration - offset
	second.Offset = orig.Offset + offset

	out := make([]AudioClip, 0, len(p.AudioClips)+1)
	out = append(out, p.AudioClips[:idx]...)
	out = append(out, p.AudioClips[idx+1:]...)
	p.AudioClips = append(out, first, second)
	return [2]string{first.ID, second.ID}, nil
}

func (p *Project) RemoveAudioClip(id string) error {
	idx := p.audioIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrAudioClipNotFound, id)
	}
	out := make([]AudioClip, 0, len(p.AudioClips)-1)
	out = append(out, p.AudioClips[:idx]...)
	p.AudioClips = append(out, p.AudioClips[idx+1:]...)
	return nil
}
