package edl

import (
	"fmt"
	"math"
	"sort"
)

// AddTrack activates the next secondary audio track above the current maximum
// and returns its number. The reserved music track does not count.
func (p *Project) AddTrack() int {
	next := DefaultAudioTrack - 1
	for _, t := range p.AudioTracks {
		if t != MusicTrack && t > next {
			next = t
		}
	}
	next++
	if next == MusicTrack {
		next++
	}
	p.AudioTracks = appendTrack(p.AudioTracks, next)
	if p.TrackVolumes == nil {
		p.TrackVolumes = map[string]float64{}
	}
	if _, ok := p.TrackVolumes[AudioTrackKey(next)]; !ok {
		p.TrackVolumes[AudioTrackKey(next)] = 1
	}
	return next
}

// RemoveTrack deactivates a track and deletes every audio clip placed on it.
func (p *Project) RemoveTrack(track int) error {
	idx := -1
	for i, t := range p.AudioTracks {
		if t == track {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrTrackNotFound, track)
	}
	p.AudioTracks = append(append([]int{}, p.AudioTracks[:idx]...), p.AudioTracks[idx+1:]...)

	kept := p.AudioClips[:0:0]
	for _, a := range p.AudioClips {
		if a.Track != track {
			kept = append(kept, a)
		}
	}
	p.AudioClips = kept
	delete(p.TrackVolumes, AudioTrackKey(track))
	return nil
}

// SetTrackVolume stores a volume in [0, 1] for a track key ("a1", "a2", "music").
func (p *Project) SetTrackVolume(key string, volume float64) error {
	if key == "" || math.IsNaN(volume) {
		return fmt.Errorf("%w: track volume %q=%v", ErrInvalidArgument, key, volume)
	}
	if p.TrackVolumes == nil {
		p.TrackVolumes = map[string]float64{}
	}
	p.TrackVolumes[key] = Clamp01(volume)
	return nil
}

// SetBgMusic installs background music, replacing any previous selection.
func (p *Project) SetBgMusic(m BgMusic) error {
	if m.Source == "" {
		return fmt.Errorf("%w: background music needs a source", ErrInvalidArgument)
	}
	if m.Duration <= 0 {
		m.Duration = DefaultMusicDuration
	}
	if m.Volume <= 0 {
		m.Volume = 1
	}
	p.BgMusic = &m
	return nil
}

// UpdateBgMusic moves or resizes the background music.
func (p *Project) UpdateBgMusic(start, duration *float64) error {
	if p.BgMusic == nil {
		return ErrNoBgMusic
	}
	if start != nil {
		if *start < 0 {
			return fmt.Errorf("%w: negative music start", ErrInvalidArgument)
		}
		p.BgMusic.Start = *start
	}
	if duration != nil {
		if *duration <= 0 {
			return fmt.Errorf("%w: music duration must be positive", ErrInvalidArgument)
		}
		p.BgMusic.Duration = *duration
	}
	return nil
}

// SplitBgMusic converts background music into two audio clips on the reserved
// music track, cut at absolute timeline time at. The bgMusic slot is removed.
func (p *Project) SplitBgMusic(at float64) ([2]string, error) {
	if p.BgMusic == nil {
		return [2]string{}, ErrNoBgMusic
	}
	m := *p.BgMusic
	length := m.Length()
	offset := at - m.Start
	if offset <= 0 || offset >= length {
		return [2]string{}, fmt.Errorf("%w: music split at %.3fs outside %.3f-%.3f",
			ErrSplitOutOfRange, at, m.Start, m.Start+length)
	}

	first := AudioClip{
		ID:       NewID("music-migrated-1"),
		Source:   m.Source,
		Start:    m.Start,
		Duration: offset,
		Track:    MusicTrack,
	}
	second := AudioClip{
		ID:       NewID("music-migrated-2"),
		Source:   m.Source,
		Start:    m.Start + offset,
		Duration: length - offset,
		Offset:   offset,
		Track:    MusicTrack,
	}

	p.BgMusic = nil
	p.AudioClips = append(p.AudioClips, first, second)
	p.AudioTracks = appendTrack(p.AudioTracks, MusicTrack)
	if p.TrackVolumes == nil {
		p.TrackVolumes = map[string]float64{}
	}
	if _, ok := p.TrackVolumes[AudioTrackKey(MusicTrack)]; !ok {
		p.TrackVolumes[AudioTrackKey(MusicTrack)] = Clamp01(m.Volume)
	}
	return [2]string{first.ID, second.ID}, nil
}

func appendTrack(tracks []int, track int) []int {
	for _, t := range tracks {
		if t == track {
			return tracks
		}
	}
	out := append(append([]int{}, tracks...), track)
	sort.Ints(out)
	return out
}

func (p *Project) hasTrack(track int) bool {
	for _, t := range p.AudioTracks {
		if t == track {
			return true
		}
	}
	return false
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
